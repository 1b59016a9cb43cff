package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/frontdesk/internal/reconcile"
	"github.com/hyperengineering/frontdesk/internal/snapshot"
	"github.com/hyperengineering/frontdesk/internal/worker"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep this device in sync with the remote store",
	Long: "Runs until interrupted. Syncs on start, whenever the remote store becomes\n" +
		"reachable again, and every sync.interval. With backup.interval set it also\n" +
		"writes a backup on start and every backup.interval.",
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	backupEvery := time.Duration(cfg.Backup.Interval)
	if d.engine == nil && backupEvery <= 0 {
		return errors.New("remote.url is not configured; nothing to sync against")
	}

	var wg sync.WaitGroup
	var trigger *reconcile.Trigger
	if d.engine != nil {
		trigger = reconcile.NewTrigger(d.engine, reconcile.TriggerConfig{
			Interval:      time.Duration(cfg.Sync.Interval),
			CheckInterval: time.Duration(cfg.Sync.CheckInterval),
			MinGap:        time.Duration(cfg.Sync.MinGap),
			Burst:         cfg.Sync.Burst,
		})
		startWorker(ctx, &wg, "sync-trigger", trigger.Run)
	}

	if backupEvery > 0 {
		uploader, err := snapshot.NewUploader(cfg.Backup)
		if err != nil {
			return err
		}
		deviceID, err := d.store.DeviceID(ctx)
		if err != nil {
			return err
		}
		exporter := snapshot.NewExporter(d.store, uploader, cfg.Backup.Dir, deviceID)
		startWorker(ctx, &wg, "backup-coordinator", worker.NewBackupCoordinator(exporter, backupEvery).Run)
	}

	<-ctx.Done()
	slog.Info("shutdown initiated")
	wg.Wait()

	if trigger != nil {
		st := trigger.Status()
		slog.Info("shutdown complete", "online", st.Online, "last_sync_at", st.LastAt)
		return nil
	}
	slog.Info("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Debug("worker launched", "worker", name)
		fn(ctx)
	}()
}
