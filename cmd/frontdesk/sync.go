package main

import (
	"errors"
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/reconcile"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization now",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	if d.engine == nil {
		return errors.New("remote.url is not configured")
	}

	trigger := reconcile.NewTrigger(d.engine, reconcile.TriggerConfig{})
	res, err := trigger.RunNow(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "COLLECTION\tPUSHED\tSKIPPED\tINSERTED\tOVERWRITTEN")
	for _, c := range types.SyncOrder {
		n := res.Collections[c]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", c, n.Pushed, n.Skipped, n.Inserted, n.Overwritten)
	}
	fmt.Fprintf(w, "%s\t\t\t%d\t\n", types.CollectionPlans, res.Catalog)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s finished in %s.\n", res.RunID, res.FinishedAt.Sub(res.StartedAt))
	return nil
}
