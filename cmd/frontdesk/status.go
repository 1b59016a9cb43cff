package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending changes and the last sync",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// deviceStatus is the JSON form of status.
type deviceStatus struct {
	DeviceID      string                     `json:"device_id"`
	Database      string                     `json:"database"`
	SchemaVersion int64                      `json:"schema_version"`
	Remote        string                     `json:"remote,omitempty"`
	Online        *bool                      `json:"online,omitempty"`
	Pending       map[types.Collection]int64 `json:"pending"`
	LastSyncAt    string                     `json:"last_sync_at,omitempty"`
	LastSyncID    string                     `json:"last_sync_id,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	st := deviceStatus{Database: cfg.Database.Path, Remote: cfg.Remote.URL}
	if st.DeviceID, err = d.store.DeviceID(ctx); err != nil {
		return err
	}
	if st.SchemaVersion, err = d.store.SchemaVersion(ctx); err != nil {
		return err
	}
	if st.Pending, err = d.store.CountDirty(ctx); err != nil {
		return err
	}
	if st.LastSyncAt, err = optionalMeta(ctx, d, store.MetaLastSyncAt); err != nil {
		return err
	}
	if st.LastSyncID, err = optionalMeta(ctx, d, store.MetaLastSyncID); err != nil {
		return err
	}
	if d.engine != nil {
		online := d.engine.Ping(ctx) == nil
		st.Online = &online
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Device:   %s\n", st.DeviceID)
	fmt.Fprintf(out, "Database: %s (schema %d)\n", st.Database, st.SchemaVersion)
	switch {
	case st.Online == nil:
		fmt.Fprintln(out, "Remote:   not configured (offline only)")
	case *st.Online:
		fmt.Fprintf(out, "Remote:   %s (reachable)\n", st.Remote)
	default:
		fmt.Fprintf(out, "Remote:   %s (unreachable)\n", st.Remote)
	}
	if st.LastSyncAt == "" {
		fmt.Fprintln(out, "Last sync: never")
	} else if t, err := time.Parse(time.RFC3339Nano, st.LastSyncAt); err == nil {
		fmt.Fprintf(out, "Last sync: %s (%s ago)\n", t.Local().Format(time.DateTime), time.Since(t).Round(time.Second))
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "\nCOLLECTION\tPENDING")
	for _, c := range types.SyncOrder {
		fmt.Fprintf(w, "%s\t%d\n", c, st.Pending[c])
	}
	return w.Flush()
}

func optionalMeta(ctx context.Context, d *device, key string) (string, error) {
	v, err := d.store.GetMeta(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}
