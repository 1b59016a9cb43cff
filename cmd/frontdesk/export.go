package main

import (
	"fmt"
	"time"

	"github.com/hyperengineering/frontdesk/internal/snapshot"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON backup of this device's data",
	Long: "Writes every member, plan and check-in, including removed and unsynced\n" +
		"ones, to backup.dir. With backup.s3_bucket set the file is also uploaded.",
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	uploader, err := snapshot.NewUploader(cfg.Backup)
	if err != nil {
		return err
	}
	deviceID, err := d.store.DeviceID(ctx)
	if err != nil {
		return err
	}

	res, err := snapshot.NewExporter(d.store, uploader, cfg.Backup.Dir, deviceID).Run(ctx)
	if res == nil {
		return err
	}

	if jsonOutput {
		if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
			return perr
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d members, %d plans, %d check-ins).\n",
		res.Path, res.Members, res.Plans, res.Attendances)
	if err != nil {
		return fmt.Errorf("backup kept locally, upload failed: %w", err)
	}
	if res.URL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded as %s; download link valid until %s:\n%s\n",
			res.ObjectKey, res.URLExpiry.Local().Format(time.DateTime), res.URL)
	}
	return nil
}
