package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable store clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
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

// setupTestStore opens a fresh store in a temp dir driven by a fake clock.
func setupTestStore(t *testing.T) (*SQLiteStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock(epoch)
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "frontdesk.db"), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
