package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

func TestNewSQLiteStore_FreshDatabaseAtLatestVersion(t *testing.T) {
	// Given: a fresh database
	s, _ := setupTestStore(t)
	ctx := context.Background()

	// When: the schema version is read
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}

	// Then: every migration has been applied
	if v != 6 {
		t.Errorf("schema version = %d, want 6", v)
	}
	for _, table := range []string{"members", "member_plans", "attendances", "staff", "plan_catalog", "sync_meta"} {
		var name string
		err := s.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestNewSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	// Given: a store that has already been migrated and holds data
	path := filepath.Join(t.TempDir(), "frontdesk.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s.AddMember(context.Background(), types.Member{Key: "k1", Name: "Ana"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	s.Close()

	// When: it is opened again
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("second open should be idempotent, got: %v", err)
	}
	defer s.Close()

	// Then: data survives
	if _, err := s.GetMemberByKey(context.Background(), "k1"); err != nil {
		t.Errorf("member lost on reopen: %v", err)
	}
}

func TestNewSQLiteStore_MigrationFailureIsFatal(t *testing.T) {
	// Given: a v2 database whose legacy rows cannot be loaded
	path := filepath.Join(t.TempDir(), "broken.db")
	db, err := openDB(path)
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	ctx := context.Background()
	if err := migrateTo(ctx, db, 2, time.Now); err != nil {
		t.Fatalf("migrateTo: %v", err)
	}
	if _, err := db.Exec(`ALTER TABLE members DROP COLUMN notes`); err != nil {
		t.Fatalf("corrupt layout: %v", err)
	}
	db.Close()

	// When: the store is opened
	_, err = NewSQLiteStore(path)

	// Then: startup fails with a migration error
	if !errors.Is(err, ErrMigration) {
		t.Fatalf("expected ErrMigration, got %v", err)
	}
}

func TestAddMember_StampsAndMarksDirty(t *testing.T) {
	s, clock := setupTestStore(t)

	// When: a member is created with caller-supplied bookkeeping fields
	m, err := s.AddMember(context.Background(), types.Member{
		Key: "k1", Name: "Ana", UpdatedAt: epoch.Add(-time.Hour), Dirty: false,
	})
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	// Then: the tracker overrides them
	if !m.Dirty {
		t.Error("created row should be dirty")
	}
	if !m.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updated_at = %v, want %v", m.UpdatedAt, clock.Now())
	}
}

func TestUpdateMember_ForcesDirtyAndStamp(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})
	if _, err := s.MarkSynced(ctx, types.CollectionMembers, m.ID, m.UpdatedAt); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	clock.Advance(time.Minute)

	// When: a content update tries to set dirty=false and an old timestamp
	err := s.UpdateMember(ctx, m.ID, Changes{
		"name": "Ana Cruz", "dirty": false, "updated_at": epoch.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}

	// Then: the row is dirty and stamped now
	got, _ := s.GetMember(ctx, m.ID)
	if !got.Dirty || got.Name != "Ana Cruz" {
		t.Errorf("got %+v, want dirty with new name", got)
	}
	if !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, clock.Now())
	}
}

func TestMarkSynced_ClearsDirtyWithoutStamp(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})
	clock.Advance(time.Minute)

	// When: the row is marked synced with the pushed last-modified
	ok, err := s.MarkSynced(ctx, types.CollectionMembers, m.ID, m.UpdatedAt)
	if err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	// Then: dirty clears and last-modified is unchanged
	got, _ := s.GetMember(ctx, m.ID)
	if !ok || got.Dirty {
		t.Errorf("row still dirty after MarkSynced (applied=%v)", ok)
	}
	if !got.UpdatedAt.Equal(m.UpdatedAt) {
		t.Errorf("updated_at changed: %v -> %v", m.UpdatedAt, got.UpdatedAt)
	}
}

func TestMarkSynced_SkipsRowEditedSincePush(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})
	pushed := m.UpdatedAt

	// Given: a local edit lands between push and clear
	clock.Advance(time.Second)
	if err := s.UpdateMember(ctx, m.ID, Changes{"phone": "555"}); err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}

	// When: the engine clears dirty for the pushed version
	ok, err := s.MarkSynced(ctx, types.CollectionMembers, m.ID, pushed)
	if err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	// Then: the newer edit stays dirty
	got, _ := s.GetMember(ctx, m.ID)
	if ok || !got.Dirty {
		t.Errorf("concurrent edit lost its dirty flag (applied=%v)", ok)
	}
}

func TestMarkSynced_SkipsEditInSameMillisecondAsPush(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})
	pushed := m.UpdatedAt

	// Given: an edit lands without the clock moving past the pushed stamp
	if err := s.UpdateMember(ctx, m.ID, Changes{"phone": "555"}); err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}
	edited, _ := s.GetMember(ctx, m.ID)
	if !edited.UpdatedAt.After(pushed) {
		t.Fatalf("edit stamped %v, want after %v", edited.UpdatedAt, pushed)
	}

	// When: the engine clears dirty for the pushed version
	ok, err := s.MarkSynced(ctx, types.CollectionMembers, m.ID, pushed)
	if err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	// Then: the edit stays dirty and keeps its content
	got, _ := s.GetMember(ctx, m.ID)
	if ok || !got.Dirty || got.Phone != "555" {
		t.Errorf("same-millisecond edit lost (applied=%v, got %+v)", ok, got)
	}
}

func TestUpdateMember_StampNeverMovesBackwards(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})

	// Given: the device clock steps back after the row was stamped
	clock.Advance(-time.Hour)

	// When
	if err := s.UpdateMember(ctx, m.ID, Changes{"name": "Ana Cruz"}); err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}

	// Then: the stamp moves one millisecond past the previous one
	got, _ := s.GetMember(ctx, m.ID)
	if want := m.UpdatedAt.Add(time.Millisecond); !got.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, want)
	}
}

func TestOverwriteMember_LastWriterWins(t *testing.T) {
	tests := []struct {
		name      string
		remoteAt  time.Duration
		wantApply bool
	}{
		{name: "remote newer", remoteAt: time.Millisecond, wantApply: true},
		{name: "tie keeps local", remoteAt: 0, wantApply: false},
		{name: "remote older", remoteAt: -time.Second, wantApply: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupTestStore(t)
			ctx := context.Background()
			local, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Local"})

			applied, err := s.OverwriteMember(ctx, types.Member{
				Key: "k1", Name: "Remote", UpdatedAt: local.UpdatedAt.Add(tt.remoteAt),
			})
			if err != nil {
				t.Fatalf("OverwriteMember: %v", err)
			}

			got, _ := s.GetMember(ctx, local.ID)
			if applied != tt.wantApply {
				t.Errorf("applied = %v, want %v", applied, tt.wantApply)
			}
			if tt.wantApply {
				if got.Name != "Remote" || got.Dirty || !got.UpdatedAt.Equal(local.UpdatedAt.Add(tt.remoteAt)) {
					t.Errorf("remote version not applied cleanly: %+v", got)
				}
			} else if got.Name != "Local" || !got.Dirty || !got.UpdatedAt.Equal(local.UpdatedAt) {
				t.Errorf("local version changed: %+v", got)
			}
		})
	}
}

func TestInsertPulledMember_IsClean(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	remoteAt := epoch.Add(-24 * time.Hour)

	if err := s.InsertPulledMember(ctx, types.Member{Key: "r1", Name: "Remote", UpdatedAt: remoteAt}); err != nil {
		t.Fatalf("InsertPulledMember: %v", err)
	}

	got, err := s.GetMemberByKey(ctx, "r1")
	if err != nil {
		t.Fatalf("GetMemberByKey: %v", err)
	}
	if got.Dirty || !got.UpdatedAt.Equal(remoteAt) {
		t.Errorf("pulled row should be clean with remote timestamp: %+v", got)
	}
}

func TestInsertPulledAttendance_Deduplicates(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.March, 1, 8, 30, 0, 123456789, time.UTC)

	// Given: a local check-in
	if _, err := s.AddAttendance(ctx, types.Attendance{MemberKey: "m1", CheckedInAt: at}); err != nil {
		t.Fatalf("AddAttendance: %v", err)
	}

	// When: the same event comes back from the remote store at ms precision
	inserted, err := s.InsertPulledAttendance(ctx, types.Attendance{
		MemberKey: "m1", CheckedInAt: at.Truncate(time.Millisecond), CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("InsertPulledAttendance: %v", err)
	}

	// Then: no duplicate row is created
	if inserted {
		t.Error("duplicate event inserted")
	}
	atts, _ := s.ListAttendances(ctx)
	if len(atts) != 1 {
		t.Errorf("attendances = %d, want 1", len(atts))
	}

	// And: a different instant is inserted clean
	inserted, err = s.InsertPulledAttendance(ctx, types.Attendance{
		MemberKey: "m1", CheckedInAt: at.Add(time.Hour), CreatedAt: at.Add(time.Hour),
	})
	if err != nil || !inserted {
		t.Fatalf("new event not inserted: inserted=%v err=%v", inserted, err)
	}
	got, _ := s.FindAttendance(ctx, "m1", at.Add(time.Hour))
	if got == nil || got.Dirty {
		t.Errorf("pulled attendance should be clean: %+v", got)
	}
}

func TestAssignMemberKey_KeepsExistingKey(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	keyless, _ := s.AddMember(ctx, types.Member{Name: "Legacy"})
	keyed, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})

	got, err := s.AssignMemberKey(ctx, keyless.ID, "new-key")
	if err != nil {
		t.Fatalf("AssignMemberKey: %v", err)
	}
	if got.Key != "new-key" || !got.Dirty {
		t.Errorf("keyless member = %+v", got)
	}

	got, err = s.AssignMemberKey(ctx, keyed.ID, "other-key")
	if err != nil {
		t.Fatalf("AssignMemberKey: %v", err)
	}
	if got.Key != "k1" {
		t.Errorf("existing key replaced: %q", got.Key)
	}
}

func TestAddMember_KeylessRowsDoNotConflict(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.AddMember(ctx, types.Member{Name: "Legacy"}); err != nil {
			t.Fatalf("keyless insert %d: %v", i, err)
		}
	}
	if _, err := s.AddMember(ctx, types.Member{Key: "dup", Name: "A"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	_, err := s.AddMember(ctx, types.Member{Key: "dup", Name: "B"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate key, got %v", err)
	}
}

func TestAddStaff_DuplicateUsername(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.AddStaff(ctx, types.Staff{Key: "s1", Name: "A", Username: "ana", Credential: "x", Role: types.RoleAdmin}); err != nil {
		t.Fatalf("AddStaff: %v", err)
	}
	_, err := s.AddStaff(ctx, types.Staff{Key: "s2", Name: "B", Username: "ana", Credential: "y", Role: types.RoleAdmin})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateMember_RejectsUnknownColumn(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})

	err := s.UpdateMember(ctx, m.ID, Changes{"id": 99})
	if !errors.Is(err, ErrColumn) {
		t.Errorf("expected ErrColumn, got %v", err)
	}
}

func TestUpdateMember_NotFound(t *testing.T) {
	s, _ := setupTestStore(t)
	err := s.UpdateMember(context.Background(), 42, Changes{"name": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPlansForMember_NewestFirst(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	for i, start := range []time.Time{epoch.AddDate(0, -2, 0), epoch, epoch.AddDate(0, -1, 0)} {
		_, err := s.AddPlan(ctx, types.MemberPlan{
			SyncKey: "p" + string(rune('a'+i)), MemberKey: "m1", Category: types.PlanMonthly, StartAt: start,
		})
		if err != nil {
			t.Fatalf("AddPlan: %v", err)
		}
	}

	plans, err := s.PlansForMember(ctx, "m1")
	if err != nil {
		t.Fatalf("PlansForMember: %v", err)
	}
	if len(plans) != 3 || !plans[0].StartAt.Equal(epoch) || !plans[2].StartAt.Equal(epoch.AddDate(0, -2, 0)) {
		t.Errorf("unexpected order: %+v", plans)
	}
}

func TestAttendancesBetween_RangeAndCount(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	for _, h := range []int{1, 5, 30} {
		at := epoch.Add(time.Duration(h) * time.Hour)
		if _, err := s.AddAttendance(ctx, types.Attendance{MemberKey: "m1", CheckedInAt: at}); err != nil {
			t.Fatalf("AddAttendance: %v", err)
		}
	}

	from, to := epoch, epoch.Add(24*time.Hour)
	atts, err := s.AttendancesBetween(ctx, from, to)
	if err != nil {
		t.Fatalf("AttendancesBetween: %v", err)
	}
	if len(atts) != 2 || !atts[0].CheckedInAt.After(atts[1].CheckedInAt) {
		t.Errorf("unexpected range result: %+v", atts)
	}
	n, err := s.CountAttendances(ctx, from, to)
	if err != nil || n != 2 {
		t.Errorf("CountAttendances = %d, %v; want 2", n, err)
	}
}

func TestMembersByPhonePrefix(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	s.AddMember(ctx, types.Member{Key: "a", Name: "Ana", Phone: "5512345"})
	s.AddMember(ctx, types.Member{Key: "b", Name: "Beto", Phone: "5598765"})
	s.AddMember(ctx, types.Member{Key: "c", Name: "Caro", Phone: "4412345"})
	s.AddMember(ctx, types.Member{Key: "d", Name: "Dani", Phone: "5512000", Deleted: true})

	got, err := s.MembersByPhonePrefix(ctx, "5512")
	if err != nil {
		t.Fatalf("MembersByPhonePrefix: %v", err)
	}
	if len(got) != 1 || got[0].Key != "a" {
		t.Errorf("got %+v, want only Ana", got)
	}
}

func TestCountDirty(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	m, _ := s.AddMember(ctx, types.Member{Key: "k1", Name: "Ana"})
	s.AddMember(ctx, types.Member{Key: "k2", Name: "Beto"})
	s.MarkSynced(ctx, types.CollectionMembers, m.ID, m.UpdatedAt)

	counts, err := s.CountDirty(ctx)
	if err != nil {
		t.Fatalf("CountDirty: %v", err)
	}
	if counts[types.CollectionMembers] != 1 || counts[types.CollectionStaff] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestReplaceCatalog(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceCatalog(ctx, []types.CatalogPlan{
		{ID: "old", Description: "Old", DaysActive: 30, Active: true},
	}); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}
	err := s.ReplaceCatalog(ctx, []types.CatalogPlan{
		{ID: "m", Description: "Mensual", Price: 500, DaysActive: 31, Active: true},
		{ID: "x", Description: "Retired", DaysActive: 7, Active: false},
	})
	if err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}

	active, _ := s.ListCatalog(ctx, true)
	all, _ := s.ListCatalog(ctx, false)
	if len(active) != 1 || active[0].ID != "m" || len(all) != 2 {
		t.Errorf("active=%+v all=%+v", active, all)
	}
	if _, err := s.GetCatalogPlan(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old catalog entry should be gone, got %v", err)
	}
}

func TestDeviceID_Stable(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	first, err := s.DeviceID(ctx)
	if err != nil || first == "" {
		t.Fatalf("DeviceID: %q, %v", first, err)
	}
	second, _ := s.DeviceID(ctx)
	if first != second {
		t.Errorf("device id changed: %q -> %q", first, second)
	}
}
