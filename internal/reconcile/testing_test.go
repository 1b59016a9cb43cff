package reconcile

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var epoch = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// device is one front-desk install: a local store and its engine.
type device struct {
	store  *store.SQLiteStore
	engine *Engine
}

func newDevice(t *testing.T, id string, rem remote.Store, clock *fakeClock) *device {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), id+".db"), store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &device{store: s, engine: New(s, rem, id, WithClock(clock.Now))}
}

func (d *device) sync(t *testing.T) *Result {
	t.Helper()
	res, err := d.engine.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
	return res
}

// failingStore fails writes or reads of one collection.
type failingStore struct {
	remote.Store
	mu       sync.Mutex
	failOn   types.Collection
	failRead bool
	err      error
}

func (f *failingStore) fail(c types.Collection, read bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn, f.failRead, f.err = c, read, err
}

func (f *failingStore) check(c types.Collection, read bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && f.failOn == c && f.failRead == read {
		return f.err
	}
	return nil
}

func (f *failingStore) Upsert(ctx context.Context, c types.Collection, onConflict []string, rows any) error {
	if err := f.check(c, false); err != nil {
		return err
	}
	return f.Store.Upsert(ctx, c, onConflict, rows)
}

func (f *failingStore) Insert(ctx context.Context, c types.Collection, onConflict []string, rows any) error {
	if err := f.check(c, false); err != nil {
		return err
	}
	return f.Store.Insert(ctx, c, onConflict, rows)
}

func (f *failingStore) SelectAll(ctx context.Context, c types.Collection, dst any) error {
	if err := f.check(c, true); err != nil {
		return err
	}
	return f.Store.SelectAll(ctx, c, dst)
}

func mustAddMember(t *testing.T, s *store.SQLiteStore, m types.Member) *types.Member {
	t.Helper()
	got, err := s.AddMember(context.Background(), m)
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	return got
}

func mustAddPlan(t *testing.T, s *store.SQLiteStore, p types.MemberPlan) *types.MemberPlan {
	t.Helper()
	got, err := s.AddPlan(context.Background(), p)
	if err != nil {
		t.Fatalf("AddPlan failed: %v", err)
	}
	return got
}

func mustAddAttendance(t *testing.T, s *store.SQLiteStore, a types.Attendance) *types.Attendance {
	t.Helper()
	got, err := s.AddAttendance(context.Background(), a)
	if err != nil {
		t.Fatalf("AddAttendance failed: %v", err)
	}
	return got
}

func assertNoDirty(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	dirty, err := s.CountDirty(context.Background())
	if err != nil {
		t.Fatalf("CountDirty failed: %v", err)
	}
	for c, n := range dirty {
		if n != 0 {
			t.Errorf("%s has %d dirty rows, want 0", c, n)
		}
	}
}
