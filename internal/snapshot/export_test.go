package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
)

var epoch = time.Date(2025, time.March, 1, 23, 30, 0, 0, time.UTC)

func seededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "frontdesk.db"), store.WithClock(func() time.Time { return epoch }))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ana, err := s.AddMember(ctx, types.Member{Key: "m-ana", Name: "Ana"})
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	gone, err := s.AddMember(ctx, types.Member{Key: "m-gone", Name: "Baja"})
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := s.UpdateMember(ctx, gone.ID, store.Changes{"deleted": true}); err != nil {
		t.Fatalf("UpdateMember failed: %v", err)
	}
	plan, err := s.AddPlan(ctx, types.MemberPlan{SyncKey: "p-1", MemberKey: ana.Key, Category: types.PlanMonthly, Price: 500, StartAt: epoch})
	if err != nil {
		t.Fatalf("AddPlan failed: %v", err)
	}
	if _, err := s.AddAttendance(ctx, types.Attendance{MemberKey: ana.Key, PlanKey: plan.SyncKey, CheckedInAt: epoch}); err != nil {
		t.Fatalf("AddAttendance failed: %v", err)
	}
	return s
}

func TestFileName_UsesUTCDate(t *testing.T) {
	local := time.FixedZone("CST", -6*3600)
	// 20:00 local on March 1 is already March 2 in UTC.
	at := time.Date(2025, time.March, 1, 20, 0, 0, 0, local)
	if got := FileName(at); got != "frontdesk-backup-2025-03-02.json" {
		t.Errorf("FileName = %q", got)
	}
}

func TestExport_WritesEveryRow(t *testing.T) {
	s := seededStore(t)
	dir := filepath.Join(t.TempDir(), "backups")

	path, b, err := Export(context.Background(), s, dir, epoch)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if path != filepath.Join(dir, "frontdesk-backup-2025-03-01.json") {
		t.Errorf("path = %q", path)
	}
	if len(b.Members) != 2 || len(b.Plans) != 1 || len(b.Attendances) != 1 {
		t.Fatalf("backup counts = %d/%d/%d, want 2/1/1", len(b.Members), len(b.Plans), len(b.Attendances))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("backup is not JSON: %v", err)
	}
	for _, key := range []string{"members", "member_plans", "attendances", "exported_at"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("backup missing %q", key)
		}
	}

	var decoded Backup
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if !decoded.ExportedAt.Equal(epoch) {
		t.Errorf("exported_at = %v, want %v", decoded.ExportedAt, epoch)
	}
	if !decoded.Members[1].Deleted {
		t.Error("soft-deleted member should be in the backup")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("backup dir holds %d files, want 1 (no temp leftovers)", len(entries))
	}
}

func TestExporter_Run_Local(t *testing.T) {
	s := seededStore(t)
	e := NewExporter(s, nil, t.TempDir(), "desk-1")
	e.now = func() time.Time { return epoch }

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ObjectKey != "" || res.URL != "" {
		t.Errorf("local-only run uploaded: %+v", res)
	}
	if res.Members != 2 || res.Plans != 1 || res.Attendances != 1 {
		t.Errorf("result counts = %+v", res)
	}
}

func TestExporter_Run_Uploads(t *testing.T) {
	s := seededStore(t)
	objects := &fakeObjects{}
	up := &Bucket{objects: objects, name: "gym-backups", linkTTL: time.Minute}
	e := NewExporter(s, up, t.TempDir(), "desk-1")
	e.now = func() time.Time { return epoch }

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ObjectKey != "desk-1/backups/frontdesk-backup-2025-03-01.json" {
		t.Errorf("ObjectKey = %q", res.ObjectKey)
	}
	if objects.filePath != res.Path {
		t.Errorf("uploaded %q, want %q", objects.filePath, res.Path)
	}
	if res.URL == "" {
		t.Error("expected a download URL")
	}

	// An upload failure still leaves the local backup.
	objects.putErr = errors.New("bucket unreachable")
	res, err = e.Run(context.Background())
	if !errors.Is(err, objects.putErr) {
		t.Fatalf("Run() error = %v, want upload failure", err)
	}
	if _, statErr := os.Stat(res.Path); statErr != nil {
		t.Errorf("local backup missing after failed upload: %v", statErr)
	}
}
