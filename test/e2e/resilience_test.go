package e2e

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/reconcile"
	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/types"
)

// Failure and recovery: the desk keeps working without the hub and catches
// up once it is back.

func TestResilience_OfflineWorkSyncsOnReconnect(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	clock := &fakeClock{now: epoch}
	a := newDevice(t, "desk-a", hub, clock)
	a.bootstrap(t, "ana-staff")

	// Given: the hub is unreachable
	hub.setDown(true)

	// When: the desk registers and checks in a member
	key := a.register(t, "Ana", types.PlanMonthly)
	clock.Advance(time.Minute)
	a.checkIn(t, key)

	// Then: sync fails as unavailable and the work stays pending
	_, err := a.engine.Synchronize(ctx)
	if !remote.IsUnavailable(err) {
		t.Fatalf("Synchronize err = %v, want unavailable", err)
	}
	if hub.count(types.CollectionMembers) != 0 {
		t.Fatal("hub received data while down")
	}

	// When: the hub comes back while the trigger is watching
	trigger := reconcile.NewTrigger(a.engine, reconcile.TriggerConfig{CheckInterval: 10 * time.Millisecond})
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		trigger.Run(runCtx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(30 * time.Millisecond)
	hub.setDown(false)

	// Then: the reconnect run pushes everything
	if !waitFor(2*time.Second, func() bool { return hub.count(types.CollectionAttendances) == 1 }) {
		t.Fatalf("hub attendances = %d after reconnect, want 1", hub.count(types.CollectionAttendances))
	}
	if !waitFor(time.Second, func() bool { return trigger.Status().Online && trigger.Status().LastErr == nil }) {
		t.Errorf("trigger status = %+v", trigger.Status())
	}
}

func TestResilience_FailedRunIsRetriedCleanly(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	clock := &fakeClock{now: epoch}
	a := newDevice(t, "desk-a", hub, clock)
	a.bootstrap(t, "ana-staff")

	key := a.register(t, "Ana", types.PlanMonthly)
	clock.Advance(time.Minute)
	a.checkIn(t, key)

	// Given: the hub drops the attendance write
	hub.failWrites(types.CollectionAttendances, 1)

	// When: the run aborts part way
	_, err := a.engine.Synchronize(ctx)
	var se *reconcile.SyncError
	if !errors.As(err, &se) {
		t.Fatalf("Synchronize err = %v, want *SyncError", err)
	}
	if se.Collection != types.CollectionAttendances || se.Phase != reconcile.PhasePush {
		t.Errorf("SyncError = %+v", se)
	}
	if hub.count(types.CollectionMembers) != 1 || hub.count(types.CollectionAttendances) != 0 {
		t.Errorf("hub after aborted run: members=%d attendances=%d",
			hub.count(types.CollectionMembers), hub.count(types.CollectionAttendances))
	}

	// Then: the retry completes without duplicates
	a.sync(t)
	a.sync(t)
	for c, want := range map[types.Collection]int{
		types.CollectionMembers:     1,
		types.CollectionMemberPlans: 1,
		types.CollectionAttendances: 1,
	} {
		if got := hub.count(c); got != want {
			t.Errorf("hub %s = %d, want %d", c, got, want)
		}
	}
	assertNoDirty(t, a)
}

func TestResilience_UsernameCollisionSurfaces(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	clock := &fakeClock{now: epoch}
	a := newDevice(t, "desk-a", hub, clock)
	b := newDevice(t, "desk-b", hub, clock)

	// Given: both desks were set up offline with the same username
	a.bootstrap(t, "owner")
	b.bootstrap(t, "owner")
	b.register(t, "Beto", types.PlanDay)
	a.sync(t)

	// When: desk B syncs
	_, err := b.engine.Synchronize(ctx)

	// Then: the staff push is rejected as a unique violation
	var se *reconcile.SyncError
	if !errors.As(err, &se) || se.Collection != types.CollectionStaff {
		t.Fatalf("Synchronize err = %v, want staff SyncError", err)
	}
	var re *remote.Error
	if !errors.As(err, &re) || re.Code != remote.CodeUniqueViolation || re.Status != http.StatusConflict {
		t.Errorf("cause = %v, want 409/%s", err, remote.CodeUniqueViolation)
	}
	if remote.IsUnavailable(err) {
		t.Error("a rejection must not read as unavailable")
	}

	// Collections ahead of staff went through
	if got := hub.count(types.CollectionMembers); got != 1 {
		t.Errorf("hub members = %d, want 1", got)
	}
	dirty, err := b.store.CountDirty(ctx)
	if err != nil {
		t.Fatalf("CountDirty failed: %v", err)
	}
	if dirty[types.CollectionStaff] != 1 || dirty[types.CollectionMembers] != 0 {
		t.Errorf("desk B dirty = %v", dirty)
	}
}

func TestResilience_WrongHubKey(t *testing.T) {
	hub := startHub(t)
	clock := &fakeClock{now: epoch}
	a := newDevice(t, "desk-a", hub, clock)
	a.engine = reconcile.New(a.store, remote.NewClient(hub.srv.URL, "wrong-key", 5*time.Second), "desk-a")

	_, err := a.engine.Synchronize(context.Background())

	var re *remote.Error
	if !errors.As(err, &re) || re.Status != http.StatusUnauthorized {
		t.Errorf("Synchronize err = %v, want 401", err)
	}
}
