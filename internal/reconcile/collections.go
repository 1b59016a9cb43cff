package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
)

// keyedOps binds a mutable collection T and its wire row R to the local and
// remote calls the generic push and pull need.
type keyedOps[T, R any] struct {
	collection types.Collection
	dirty      func(ctx context.Context) ([]T, error)
	ident      func(T) (id int64, key string, updatedAt time.Time)
	assignKey  func(ctx context.Context, id int64, key string) (*T, error)
	toRow      func(T) R
	fromRow    func(R) T
	lookup     func(ctx context.Context, key string) error
	insert     func(ctx context.Context, v T) error
	overwrite  func(ctx context.Context, v T) (bool, error)
}

func (e *Engine) memberOps() keyedOps[types.Member, remote.MemberRow] {
	return keyedOps[types.Member, remote.MemberRow]{
		collection: types.CollectionMembers,
		dirty:      e.local.DirtyMembers,
		ident:      func(m types.Member) (int64, string, time.Time) { return m.ID, m.Key, m.UpdatedAt },
		assignKey:  e.local.AssignMemberKey,
		toRow:      remote.MemberRowFrom,
		fromRow:    remote.MemberRow.Member,
		lookup: func(ctx context.Context, key string) error {
			_, err := e.local.GetMemberByKey(ctx, key)
			return err
		},
		insert:    e.local.InsertPulledMember,
		overwrite: e.local.OverwriteMember,
	}
}

func (e *Engine) planOps() keyedOps[types.MemberPlan, remote.PlanRow] {
	return keyedOps[types.MemberPlan, remote.PlanRow]{
		collection: types.CollectionMemberPlans,
		dirty:      e.local.DirtyPlans,
		ident:      func(p types.MemberPlan) (int64, string, time.Time) { return p.ID, p.SyncKey, p.UpdatedAt },
		assignKey:  e.local.AssignPlanKey,
		toRow:      remote.PlanRowFrom,
		fromRow:    remote.PlanRow.Plan,
		lookup: func(ctx context.Context, key string) error {
			_, err := e.local.GetPlanByKey(ctx, key)
			return err
		},
		insert:    e.local.InsertPulledPlan,
		overwrite: e.local.OverwritePlan,
	}
}

func (e *Engine) staffOps() keyedOps[types.Staff, remote.StaffRow] {
	return keyedOps[types.Staff, remote.StaffRow]{
		collection: types.CollectionStaff,
		dirty:      e.local.DirtyStaff,
		ident:      func(s types.Staff) (int64, string, time.Time) { return s.ID, s.Key, s.UpdatedAt },
		assignKey:  e.local.AssignStaffKey,
		toRow:      remote.StaffRowFrom,
		fromRow:    remote.StaffRow.Staff,
		lookup: func(ctx context.Context, key string) error {
			_, err := e.local.GetStaffByKey(ctx, key)
			return err
		},
		insert:    e.local.InsertPulledStaff,
		overwrite: e.local.OverwriteStaff,
	}
}

func syncKeyed[T, R any](ctx context.Context, e *Engine, ops keyedOps[T, R]) (Counts, error) {
	var counts Counts
	if err := pushKeyed(ctx, e, ops, &counts); err != nil {
		return counts, err
	}
	err := pullKeyed(ctx, e, ops, &counts)
	return counts, err
}

// pushKeyed upserts every dirty row by its key. A missing key is derived and
// saved locally before the remote call.
func pushKeyed[T, R any](ctx context.Context, e *Engine, ops keyedOps[T, R], counts *Counts) error {
	c := ops.collection
	rows, err := ops.dirty(ctx)
	if err != nil {
		return &SyncError{Collection: c, Phase: PhasePush, Err: err}
	}

	for _, row := range rows {
		id, key, _ := ops.ident(row)
		if key == "" {
			stored, err := ops.assignKey(ctx, id, e.newKey(c, id))
			if err != nil {
				return &SyncError{Collection: c, Phase: PhasePush, Err: err}
			}
			row = *stored
			id, key, _ = ops.ident(row)
			slog.Debug("assigned key to keyless row",
				"component", "reconcile",
				"collection", c,
				"record_key", key,
			)
		}

		if err := e.remote.Upsert(ctx, c, remote.ConflictKeys[c], ops.toRow(row)); err != nil {
			return &SyncError{Collection: c, RecordKey: key, Phase: PhasePush, Err: err}
		}
		_, _, pushed := ops.ident(row)
		if err := e.markSynced(ctx, c, id, pushed, counts); err != nil {
			return &SyncError{Collection: c, RecordKey: key, Phase: PhasePush, Err: err}
		}
		counts.Pushed++
	}
	return nil
}

// markSynced clears the dirty flag only while the row still holds the
// pushed content. A row edited mid-push stays dirty for the next run.
func (e *Engine) markSynced(ctx context.Context, c types.Collection, id int64, pushed time.Time, counts *Counts) error {
	cleared, err := e.local.MarkSynced(ctx, c, id, pushed)
	if err != nil {
		return err
	}
	if !cleared {
		counts.StillDirty++
		slog.Debug("row changed during push, left dirty",
			"component", "reconcile",
			"collection", c,
			"id", id,
		)
	}
	return nil
}

// pullKeyed applies every remote row: absent rows are inserted clean, and
// present rows are overwritten only when the remote last-modified time is
// strictly newer. The comparison happens inside the local write.
func pullKeyed[T, R any](ctx context.Context, e *Engine, ops keyedOps[T, R], counts *Counts) error {
	c := ops.collection
	var rows []R
	if err := e.remote.SelectAll(ctx, c, &rows); err != nil {
		return &SyncError{Collection: c, Phase: PhasePull, Err: err}
	}

	for _, r := range rows {
		v := ops.fromRow(r)
		_, key, _ := ops.ident(v)
		if key == "" {
			continue
		}

		err := ops.lookup(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := ops.insert(ctx, v); err != nil {
				return &SyncError{Collection: c, RecordKey: key, Phase: PhasePull, Err: err}
			}
			counts.Inserted++
		case err != nil:
			return &SyncError{Collection: c, RecordKey: key, Phase: PhasePull, Err: err}
		default:
			replaced, err := ops.overwrite(ctx, v)
			if err != nil {
				return &SyncError{Collection: c, RecordKey: key, Phase: PhasePull, Err: err}
			}
			if replaced {
				counts.Overwritten++
			} else {
				counts.Unchanged++
			}
		}
	}
	return nil
}

// syncAttendances pushes check-ins insert-only and pulls them with
// deduplication on identity key and instant. Check-ins carry no durable
// cross-device key.
func (e *Engine) syncAttendances(ctx context.Context) (Counts, error) {
	const c = types.CollectionAttendances
	var counts Counts

	dirty, err := e.local.DirtyAttendances(ctx)
	if err != nil {
		return counts, &SyncError{Collection: c, Phase: PhasePush, Err: err}
	}
	for _, a := range dirty {
		if a.MemberKey == "" {
			linked, err := e.relink(ctx, a)
			if err != nil {
				return counts, &SyncError{Collection: c, Phase: PhasePush, Err: err}
			}
			if linked == nil {
				counts.Skipped++
				slog.Warn("skipping attendance without member key",
					"component", "reconcile",
					"collection", c,
					"id", a.ID,
					"legacy_ref", a.LegacyRef,
				)
				continue
			}
			a = *linked
		}

		key := attendanceKey(a)
		if err := e.remote.Insert(ctx, c, remote.ConflictKeys[c], remote.AttendanceRowFrom(a)); err != nil {
			return counts, &SyncError{Collection: c, RecordKey: key, Phase: PhasePush, Err: err}
		}
		if err := e.markSynced(ctx, c, a.ID, a.UpdatedAt, &counts); err != nil {
			return counts, &SyncError{Collection: c, RecordKey: key, Phase: PhasePush, Err: err}
		}
		counts.Pushed++
	}

	var rows []remote.AttendanceRow
	if err := e.remote.SelectAll(ctx, c, &rows); err != nil {
		return counts, &SyncError{Collection: c, Phase: PhasePull, Err: err}
	}
	for _, r := range rows {
		a := r.Attendance()
		if a.MemberKey == "" {
			continue
		}
		inserted, err := e.local.InsertPulledAttendance(ctx, a)
		if err != nil {
			return counts, &SyncError{Collection: c, RecordKey: attendanceKey(a), Phase: PhasePull, Err: err}
		}
		if inserted {
			counts.Inserted++
		} else {
			counts.Unchanged++
		}
	}
	return counts, nil
}

// relink resolves a check-in's identity through its legacy back-reference
// to a plan row. It returns nil when nothing resolves.
func (e *Engine) relink(ctx context.Context, a types.Attendance) (*types.Attendance, error) {
	if a.LegacyRef == 0 {
		return nil, nil
	}
	plan, err := e.local.GetPlan(ctx, a.LegacyRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if plan.MemberKey == "" {
		return nil, nil
	}
	return e.local.LinkAttendance(ctx, a.ID, plan.MemberKey, plan.SyncKey)
}

func attendanceKey(a types.Attendance) string {
	return a.MemberKey + "@" + types.CanonicalInstant(a.CheckedInAt).Format(time.RFC3339Nano)
}
