package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/frontdesk/internal/snapshot"
)

// BackupRunner takes one backup. *snapshot.Exporter implements it.
type BackupRunner interface {
	Run(ctx context.Context) (*snapshot.Result, error)
}

// BackupCoordinator takes a backup of the device store on start and then
// every interval.
type BackupCoordinator struct {
	runner   BackupRunner
	interval time.Duration
}

// NewBackupCoordinator creates a coordinator for runner.
func NewBackupCoordinator(runner BackupRunner, interval time.Duration) *BackupCoordinator {
	return &BackupCoordinator{runner: runner, interval: interval}
}

// Run starts the coordinator loop.
func (c *BackupCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "worker_started",
		"interval", c.interval,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.backup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.backup(ctx)
		}
	}
}

// backup takes one backup. Returns true if the file was written, even when
// the upload that followed failed.
func (c *BackupCoordinator) backup(ctx context.Context) bool {
	res, err := c.runner.Run(ctx)
	if res == nil {
		if ctx.Err() != nil {
			return false // shutting down
		}
		slog.Warn("backup failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_failed",
			"error", err,
		)
		return false
	}

	if err != nil {
		// The local file is still a valid backup.
		slog.Warn("backup upload failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_upload_failed",
			"path", res.Path,
			"error", err,
		)
	}

	slog.Info("backup cycle completed",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "backup_complete",
		"path", res.Path,
		"members", res.Members,
		"member_plans", res.Plans,
		"attendances", res.Attendances,
		"object_key", res.ObjectKey,
	)
	return true
}
