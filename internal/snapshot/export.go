package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// Source is the local store as the exporter reads it.
type Source interface {
	AllMembers(ctx context.Context) ([]types.Member, error)
	ListPlans(ctx context.Context) ([]types.MemberPlan, error)
	ListAttendances(ctx context.Context) ([]types.Attendance, error)
}

// Backup is the document written to a backup file. Every row is included,
// soft-deleted and unsynced ones too.
type Backup struct {
	Members     []types.Member     `json:"members"`
	Plans       []types.MemberPlan `json:"member_plans"`
	Attendances []types.Attendance `json:"attendances"`
	ExportedAt  time.Time          `json:"exported_at"`
}

// FileName names the backup taken at t, one per UTC day.
func FileName(t time.Time) string {
	return "frontdesk-backup-" + t.UTC().Format(time.DateOnly) + ".json"
}

// Export writes a backup of src into dir and returns its path. A backup
// taken later the same day replaces the earlier one.
func Export(ctx context.Context, src Source, dir string, now time.Time) (string, *Backup, error) {
	b := &Backup{ExportedAt: types.CanonicalInstant(now)}
	var err error
	if b.Members, err = src.AllMembers(ctx); err != nil {
		return "", nil, fmt.Errorf("export members: %w", err)
	}
	if b.Plans, err = src.ListPlans(ctx); err != nil {
		return "", nil, fmt.Errorf("export plans: %w", err)
	}
	if b.Attendances, err = src.ListAttendances(ctx); err != nil {
		return "", nil, fmt.Errorf("export attendances: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	if err := writeJSON(path, b); err != nil {
		return "", nil, err
	}
	return path, b, nil
}

// writeJSON writes v next to path and renames it into place, so a crash
// never leaves a truncated backup.
func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*.json")
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install backup: %w", err)
	}
	return nil
}

// Result describes one finished backup.
type Result struct {
	Path        string    `json:"path"`
	Members     int       `json:"members"`
	Plans       int       `json:"member_plans"`
	Attendances int       `json:"attendances"`
	ObjectKey   string    `json:"object_key,omitempty"`
	URL         string    `json:"url,omitempty"`
	URLExpiry   time.Time `json:"url_expiry,omitempty"`
}

// Exporter writes backups and ships them to the configured storage.
type Exporter struct {
	src      Source
	uploader Uploader
	dir      string
	deviceID string
	now      func() time.Time
}

// NewExporter creates an exporter writing into dir. A nil uploader keeps
// backups local.
func NewExporter(src Source, up Uploader, dir, deviceID string) *Exporter {
	if up == nil {
		up = LocalOnly{}
	}
	return &Exporter{src: src, uploader: up, dir: dir, deviceID: deviceID, now: time.Now}
}

// Run exports the local store and uploads the file. An upload failure is
// returned with the local result, which is still usable.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	path, b, err := Export(ctx, e.src, e.dir, e.now())
	if err != nil {
		return nil, err
	}
	res := &Result{
		Path:        path,
		Members:     len(b.Members),
		Plans:       len(b.Plans),
		Attendances: len(b.Attendances),
	}
	slog.Info("backup written",
		"component", "snapshot",
		"action", "backup_written",
		"path", path,
		"members", res.Members,
		"attendances", res.Attendances,
	)

	if _, ok := e.uploader.(LocalOnly); ok {
		return res, nil
	}

	key := objectKey(e.deviceID, filepath.Base(path))
	if err := e.uploader.Upload(ctx, key, path); err != nil {
		slog.Warn("backup upload failed",
			"component", "snapshot",
			"action", "backup_upload_failed",
			"error", err,
		)
		return res, err
	}
	res.ObjectKey = key
	res.URL, res.URLExpiry, err = e.uploader.DownloadURL(ctx, key)
	if err != nil {
		return res, err
	}
	return res, nil
}
