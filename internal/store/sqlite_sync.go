package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// Sync bookkeeping. Every write here either carries the synced sentinel or
// is a legitimate local change (key assignment, attendance linking).

var keyColumns = map[types.Collection]string{
	types.CollectionMembers:     "member_key",
	types.CollectionMemberPlans: "sync_key",
	types.CollectionStaff:       "staff_key",
}

func tableFor(c types.Collection) (string, error) {
	switch c {
	case types.CollectionMembers, types.CollectionMemberPlans, types.CollectionAttendances, types.CollectionStaff:
		return string(c), nil
	default:
		return "", fmt.Errorf("%w: collection %q is not synced", ErrColumn, c)
	}
}

// DirtyMembers returns members changed since their last successful push.
func (s *SQLiteStore) DirtyMembers(ctx context.Context) ([]types.Member, error) {
	return queryAll(ctx, s.db, scanMember, `SELECT `+memberColumns+` FROM members WHERE dirty = 1 ORDER BY id`)
}

func (s *SQLiteStore) DirtyPlans(ctx context.Context) ([]types.MemberPlan, error) {
	return queryAll(ctx, s.db, scanPlan, `SELECT `+planColumns+` FROM member_plans WHERE dirty = 1 ORDER BY id`)
}

func (s *SQLiteStore) DirtyAttendances(ctx context.Context) ([]types.Attendance, error) {
	return queryAll(ctx, s.db, scanAttendance, `SELECT `+attendanceColumns+` FROM attendances WHERE dirty = 1 ORDER BY id`)
}

func (s *SQLiteStore) DirtyStaff(ctx context.Context) ([]types.Staff, error) {
	return queryAll(ctx, s.db, scanStaff, `SELECT `+staffColumns+` FROM staff WHERE dirty = 1 ORDER BY id`)
}

// CountDirty returns the number of unsynced rows per collection.
func (s *SQLiteStore) CountDirty(ctx context.Context) (map[types.Collection]int64, error) {
	out := make(map[types.Collection]int64, len(types.SyncOrder))
	for _, c := range types.SyncOrder {
		n, err := count(ctx, s.db, `SELECT COUNT(*) FROM `+string(c)+` WHERE dirty = 1`)
		if err != nil {
			return nil, fmt.Errorf("count dirty %s: %w", c, err)
		}
		out[c] = n
	}
	return out, nil
}

// assignKey persists key on a row that has none. The write is a content
// change, so the row stays dirty with a fresh last-modified time. A row that
// already carries a key keeps it.
func (s *SQLiteStore) assignKey(ctx context.Context, c types.Collection, id int64, key string) error {
	col := keyColumns[c]
	_, err := s.updateTracked(ctx, s.db, string(c), Changes{col: key}, "id = ? AND "+col+" IS NULL", id)
	if err != nil {
		return fmt.Errorf("assign %s key to %d: %w", c, id, err)
	}
	return nil
}

// AssignMemberKey gives a keyless member its identity key and returns the
// stored row.
func (s *SQLiteStore) AssignMemberKey(ctx context.Context, id int64, key string) (*types.Member, error) {
	if err := s.assignKey(ctx, types.CollectionMembers, id, key); err != nil {
		return nil, err
	}
	return s.GetMember(ctx, id)
}

func (s *SQLiteStore) AssignPlanKey(ctx context.Context, id int64, key string) (*types.MemberPlan, error) {
	if err := s.assignKey(ctx, types.CollectionMemberPlans, id, key); err != nil {
		return nil, err
	}
	return s.GetPlan(ctx, id)
}

func (s *SQLiteStore) AssignStaffKey(ctx context.Context, id int64, key string) (*types.Staff, error) {
	if err := s.assignKey(ctx, types.CollectionStaff, id, key); err != nil {
		return nil, err
	}
	return s.GetStaff(ctx, id)
}

// LinkAttendance attaches an identity and plan to a check-in recovered
// through its legacy reference.
func (s *SQLiteStore) LinkAttendance(ctx context.Context, id int64, memberKey, planKey string) (*types.Attendance, error) {
	n, err := s.updateTracked(ctx, s.db, "attendances",
		Changes{"member_key": memberKey, "plan_key": planKey}, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("link attendance %d: %w", id, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetAttendance(ctx, id)
}

// MarkSynced clears the dirty flag of a pushed row without touching its
// last-modified time. The write only applies while the row still carries
// the pushed last-modified value; it reports false when a concurrent local
// edit has changed the row since.
func (s *SQLiteStore) MarkSynced(ctx context.Context, c types.Collection, id int64, pushed time.Time) (bool, error) {
	table, err := tableFor(c)
	if err != nil {
		return false, err
	}
	n, err := s.updateTracked(ctx, s.db, table, Changes{}.MarkSynced(),
		"id = ? AND updated_at = ?", id, formatTime(pushed))
	if err != nil {
		return false, fmt.Errorf("mark %s %d synced: %w", c, id, err)
	}
	return n > 0, nil
}

func pulled(c Changes, updatedAt time.Time) Changes {
	c[colUpdatedAt] = updatedAt
	return c.MarkSynced()
}

// InsertPulledMember stores a member received from the remote store. The
// row is clean and keeps the remote last-modified time.
func (s *SQLiteStore) InsertPulledMember(ctx context.Context, m types.Member) error {
	if _, err := s.insertTracked(ctx, s.db, "members", pulled(memberChanges(m), m.UpdatedAt)); err != nil {
		return fmt.Errorf("insert pulled member %s: %w", m.Key, err)
	}
	return nil
}

// OverwriteMember replaces the local member with the same key when the
// remote last-modified time is strictly newer. The comparison is part of
// the write. It reports whether the row was replaced.
func (s *SQLiteStore) OverwriteMember(ctx context.Context, m types.Member) (bool, error) {
	n, err := s.updateTracked(ctx, s.db, "members", pulled(memberChanges(m), m.UpdatedAt),
		"member_key = ? AND updated_at < ?", m.Key, formatTime(m.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("overwrite member %s: %w", m.Key, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertPulledPlan(ctx context.Context, p types.MemberPlan) error {
	if _, err := s.insertTracked(ctx, s.db, "member_plans", pulled(planChanges(p), p.UpdatedAt)); err != nil {
		return fmt.Errorf("insert pulled plan %s: %w", p.SyncKey, err)
	}
	return nil
}

func (s *SQLiteStore) OverwritePlan(ctx context.Context, p types.MemberPlan) (bool, error) {
	n, err := s.updateTracked(ctx, s.db, "member_plans", pulled(planChanges(p), p.UpdatedAt),
		"sync_key = ? AND updated_at < ?", p.SyncKey, formatTime(p.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("overwrite plan %s: %w", p.SyncKey, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertPulledStaff(ctx context.Context, st types.Staff) error {
	if _, err := s.insertTracked(ctx, s.db, "staff", pulled(staffChanges(st), st.UpdatedAt)); err != nil {
		return fmt.Errorf("insert pulled staff %s: %w", st.Key, err)
	}
	return nil
}

func (s *SQLiteStore) OverwriteStaff(ctx context.Context, st types.Staff) (bool, error) {
	n, err := s.updateTracked(ctx, s.db, "staff", pulled(staffChanges(st), st.UpdatedAt),
		"staff_key = ? AND updated_at < ?", st.Key, formatTime(st.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("overwrite staff %s: %w", st.Key, err)
	}
	return n > 0, nil
}

// InsertPulledAttendance stores a check-in received from the remote store
// unless a local check-in with the same identity key and instant exists. It
// reports whether a row was inserted.
func (s *SQLiteStore) InsertPulledAttendance(ctx context.Context, a types.Attendance) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := count(ctx, tx,
		`SELECT COUNT(*) FROM attendances WHERE member_key = ? AND checked_in_at = ?`,
		a.MemberKey, formatTime(a.CheckedInAt))
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if _, err := s.insertTracked(ctx, tx, "attendances", pulled(attendanceChanges(a), a.UpdatedAt)); err != nil {
		return false, fmt.Errorf("insert pulled attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}
