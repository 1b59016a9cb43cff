// Package reconcile brings the local store and the shared remote store to a
// converged state.
//
// A run walks the syncable collections in dependency order. Each collection
// is pushed (dirty local rows upserted remotely, then marked synced) before
// it is pulled (every remote row applied locally when strictly newer). Any
// remote failure aborts the run with a *SyncError; every phase is
// idempotent, so the caller retries the whole run later.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LocalStore is the part of the local store the engine reads and writes.
// *store.SQLiteStore implements it.
type LocalStore interface {
	DirtyMembers(ctx context.Context) ([]types.Member, error)
	DirtyPlans(ctx context.Context) ([]types.MemberPlan, error)
	DirtyAttendances(ctx context.Context) ([]types.Attendance, error)
	DirtyStaff(ctx context.Context) ([]types.Staff, error)

	AssignMemberKey(ctx context.Context, id int64, key string) (*types.Member, error)
	AssignPlanKey(ctx context.Context, id int64, key string) (*types.MemberPlan, error)
	AssignStaffKey(ctx context.Context, id int64, key string) (*types.Staff, error)
	LinkAttendance(ctx context.Context, id int64, memberKey, planKey string) (*types.Attendance, error)
	MarkSynced(ctx context.Context, c types.Collection, id int64, pushed time.Time) (bool, error)

	GetPlan(ctx context.Context, id int64) (*types.MemberPlan, error)
	GetMemberByKey(ctx context.Context, key string) (*types.Member, error)
	GetPlanByKey(ctx context.Context, key string) (*types.MemberPlan, error)
	GetStaffByKey(ctx context.Context, key string) (*types.Staff, error)

	InsertPulledMember(ctx context.Context, m types.Member) error
	OverwriteMember(ctx context.Context, m types.Member) (bool, error)
	InsertPulledPlan(ctx context.Context, p types.MemberPlan) error
	OverwritePlan(ctx context.Context, p types.MemberPlan) (bool, error)
	InsertPulledStaff(ctx context.Context, st types.Staff) error
	OverwriteStaff(ctx context.Context, st types.Staff) (bool, error)
	InsertPulledAttendance(ctx context.Context, a types.Attendance) (bool, error)

	ReplaceCatalog(ctx context.Context, plans []types.CatalogPlan) error
	SetMeta(ctx context.Context, key, value string) error
}

// Counts tallies one collection's share of a run.
type Counts struct {
	Pushed      int `json:"pushed"`
	Skipped     int `json:"skipped"`
	StillDirty  int `json:"still_dirty"`
	Inserted    int `json:"inserted"`
	Overwritten int `json:"overwritten"`
	Unchanged   int `json:"unchanged"`
}

// Result summarizes a successful run.
type Result struct {
	RunID       string                      `json:"run_id"`
	StartedAt   time.Time                   `json:"started_at"`
	FinishedAt  time.Time                   `json:"finished_at"`
	Collections map[types.Collection]Counts `json:"collections"`
	Catalog     int                         `json:"catalog_plans"`
}

// Pushed returns the number of records pushed across all collections.
func (r *Result) Pushed() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Pushed
	}
	return n
}

// Pulled returns the number of local rows inserted or overwritten.
func (r *Result) Pulled() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Inserted + c.Overwritten
	}
	return n
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs synchronization for one device. Runs are serialized.
type Engine struct {
	mu       sync.Mutex
	local    LocalStore
	remote   remote.Store
	deviceID string
	now      func() time.Time
	tracer   trace.Tracer
}

// New creates an engine syncing local against rem. deviceID seeds the keys
// generated for keyless rows.
func New(local LocalStore, rem remote.Store, deviceID string, opts ...Option) *Engine {
	e := &Engine{
		local:    local,
		remote:   rem,
		deviceID: deviceID,
		now:      time.Now,
		tracer:   otel.Tracer("frontdesk/reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ping checks that the remote store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.remote.Ping(ctx)
}

// Synchronize pushes then pulls every syncable collection in dependency
// order, then refreshes the cached plan catalog. It returns the first
// failure as a *SyncError.
func (e *Engine) Synchronize(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := &Result{
		RunID:       ulid.Make().String(),
		StartedAt:   e.now().UTC(),
		Collections: make(map[types.Collection]Counts, len(types.SyncOrder)),
	}

	ctx, span := e.tracer.Start(ctx, "reconcile.synchronize",
		trace.WithAttributes(
			attribute.String("sync.run_id", res.RunID),
			attribute.String("device.id", e.deviceID),
		),
	)
	defer span.End()

	slog.Info("sync started",
		"component", "reconcile",
		"action", "sync_started",
		"run_id", res.RunID,
	)

	for _, c := range types.SyncOrder {
		counts, err := e.syncCollection(ctx, c)
		res.Collections[c] = counts
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sync failed")
			slog.Error("sync failed",
				"component", "reconcile",
				"action", "sync_failed",
				"run_id", res.RunID,
				"collection", c,
				"error", err,
			)
			return nil, err
		}
	}

	n, err := e.refreshCatalog(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog refresh failed")
		return nil, err
	}
	res.Catalog = n

	res.FinishedAt = e.now().UTC()
	e.recordRun(ctx, res)

	span.SetAttributes(
		attribute.Int("sync.pushed", res.Pushed()),
		attribute.Int("sync.pulled", res.Pulled()),
	)
	slog.Info("sync completed",
		"component", "reconcile",
		"action", "sync_complete",
		"run_id", res.RunID,
		"pushed", res.Pushed(),
		"pulled", res.Pulled(),
		"catalog_plans", res.Catalog,
		"duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	)
	return res, nil
}

func (e *Engine) syncCollection(ctx context.Context, c types.Collection) (Counts, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.collection",
		trace.WithAttributes(attribute.String("collection", string(c))),
	)
	defer span.End()

	var counts Counts
	var err error
	switch c {
	case types.CollectionMembers:
		counts, err = syncKeyed(ctx, e, e.memberOps())
	case types.CollectionMemberPlans:
		counts, err = syncKeyed(ctx, e, e.planOps())
	case types.CollectionAttendances:
		counts, err = e.syncAttendances(ctx)
	case types.CollectionStaff:
		counts, err = syncKeyed(ctx, e, e.staffOps())
	default:
		err = fmt.Errorf("collection %q is not synced", c)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return counts, err
	}

	span.SetAttributes(
		attribute.Int("pushed", counts.Pushed),
		attribute.Int("inserted", counts.Inserted),
		attribute.Int("overwritten", counts.Overwritten),
	)
	slog.Info("collection synced",
		"component", "reconcile",
		"action", "collection_synced",
		"collection", c,
		"pushed", counts.Pushed,
		"skipped", counts.Skipped,
		"inserted", counts.Inserted,
		"overwritten", counts.Overwritten,
	)
	return counts, nil
}

// refreshCatalog replaces the cached system plan catalog with the remote
// one. The catalog is remote-owned and never pushed.
func (e *Engine) refreshCatalog(ctx context.Context) (int, error) {
	var rows []remote.CatalogRow
	if err := e.remote.SelectAll(ctx, types.CollectionPlans, &rows); err != nil {
		return 0, &SyncError{Collection: types.CollectionPlans, Phase: PhaseCatalog, Err: err}
	}
	plans := make([]types.CatalogPlan, len(rows))
	for i, r := range rows {
		plans[i] = r.CatalogPlan()
	}
	if err := e.local.ReplaceCatalog(ctx, plans); err != nil {
		return 0, &SyncError{Collection: types.CollectionPlans, Phase: PhaseCatalog, Err: err}
	}
	return len(plans), nil
}

// recordRun stores the last successful run. Failures are logged only; the
// run itself already succeeded.
func (e *Engine) recordRun(ctx context.Context, res *Result) {
	meta := map[string]string{
		store.MetaLastSyncAt: res.FinishedAt.Format(time.RFC3339Nano),
		store.MetaLastSyncID: res.RunID,
	}
	for k, v := range meta {
		if err := e.local.SetMeta(ctx, k, v); err != nil {
			slog.Warn("failed to record sync metadata",
				"component", "reconcile",
				"key", k,
				"error", err,
			)
		}
	}
}

// newKey derives the key for a keyless local row. The same device, collection
// and local id always yield the same key, so a retried push after a crash
// cannot mint a second identity for one row.
func (e *Engine) newKey(c types.Collection, id int64) string {
	name := fmt.Sprintf("%s/%s/%d", e.deviceID, c, id)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
