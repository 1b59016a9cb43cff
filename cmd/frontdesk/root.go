package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/hyperengineering/frontdesk/internal/auth"
	"github.com/hyperengineering/frontdesk/internal/config"
	"github.com/hyperengineering/frontdesk/internal/gym"
	"github.com/hyperengineering/frontdesk/internal/reconcile"
	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	cfg *config.Config

	jsonOutput  bool
	staffUser   string
	staffSecret string
	noSync      bool
)

var rootCmd = &cobra.Command{
	Use:           "frontdesk",
	Short:         "Frontdesk - offline-first gym check-in",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&staffUser, "user", "",
		"Staff username to act as (or FRONTDESK_USER)")
	rootCmd.PersistentFlags().StringVar(&staffSecret, "password", "",
		"Staff password (or FRONTDESK_PASSWORD)")
	rootCmd.PersistentFlags().BoolVar(&noSync, "no-sync", false,
		"Do not sync after a change")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(staffCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
}

// device is one open local install: its store, the engine syncing it (nil
// when no remote is configured), and the front-desk service over both.
type device struct {
	store   *store.SQLiteStore
	engine  *reconcile.Engine
	service *gym.Service
	pending *pendingSync
}

// openDevice opens the local store and wires the engine and service. The
// caller closes it.
func openDevice(ctx context.Context) (*device, error) {
	loc, err := cfg.Device.Location()
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	slog.Debug("store initialized", "path", cfg.Database.Path)

	d := &device{store: db, pending: &pendingSync{}}
	if cfg.Remote.URL != "" {
		deviceID := cfg.Device.ID
		if deviceID == "" {
			if deviceID, err = db.DeviceID(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		client := remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, time.Duration(cfg.Remote.Timeout))
		d.engine = reconcile.New(db, client, deviceID)
	}
	d.service = gym.NewService(db, d.pending, gym.WithLocation(loc))
	return d, nil
}

// finish runs the sync a command's changes requested, then closes the
// store. A failed sync is logged only: the change is kept locally and
// pushed by a later run.
func (d *device) finish(ctx context.Context) {
	if d.pending.requested && d.engine != nil && !noSync {
		if _, err := d.engine.Synchronize(ctx); err != nil {
			slog.Warn("sync after change failed; it will be retried",
				"component", "cli",
				"error", err,
			)
		}
	}
	if err := d.store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}
}

// pendingSync remembers that a one-shot command asked for a sync.
type pendingSync struct {
	requested bool
}

func (p *pendingSync) Request() { p.requested = true }

// login signs in with --user/--password. It returns a nil session when no
// user is given so the staff bootstrap can run on an empty device.
func login(ctx context.Context, d *device, required bool) (*auth.Session, error) {
	user := firstNonEmpty(staffUser, envOr("FRONTDESK_USER"))
	if user == "" {
		if required {
			return nil, errors.New("--user is required")
		}
		return nil, nil
	}
	secret := firstNonEmpty(staffSecret, envOr("FRONTDESK_PASSWORD"))
	sess, err := auth.Login(ctx, d.store, user, secret, time.Now())
	if err != nil {
		return nil, err
	}
	slog.Debug("staff signed in", "component", "cli", "username", sess.Username, "role", sess.Role)
	return sess, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
