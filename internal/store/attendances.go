package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

const attendanceColumns = `id, legacy_ref, member_key, plan_key, checked_in_at, created_at, updated_at, dirty`

func scanAttendance(sc scanner) (types.Attendance, error) {
	var a types.Attendance
	var memberKey, planKey sql.NullString
	var checkedIn, created, updated string
	err := sc.Scan(&a.ID, &a.LegacyRef, &memberKey, &planKey, &checkedIn, &created, &updated, &a.Dirty)
	if err != nil {
		return a, err
	}
	a.MemberKey = memberKey.String
	a.PlanKey = planKey.String
	a.CheckedInAt = scanTime("checked_in_at", checkedIn)
	a.CreatedAt = scanTime("created_at", created)
	a.UpdatedAt = scanTime("updated_at", updated)
	return a, nil
}

func attendanceChanges(a types.Attendance) Changes {
	return Changes{
		"legacy_ref":    a.LegacyRef,
		"member_key":    a.MemberKey,
		"plan_key":      a.PlanKey,
		"checked_in_at": a.CheckedInAt,
		"created_at":    a.CreatedAt,
	}
}

// AddAttendance records a check-in. CreatedAt defaults to the store clock.
func (s *SQLiteStore) AddAttendance(ctx context.Context, a types.Attendance) (*types.Attendance, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock()
	}
	id, err := s.insertTracked(ctx, s.db, "attendances", attendanceChanges(a))
	if err != nil {
		return nil, fmt.Errorf("add attendance: %w", err)
	}
	return s.GetAttendance(ctx, id)
}

// GetAttendance returns the check-in with the given local id.
func (s *SQLiteStore) GetAttendance(ctx context.Context, id int64) (*types.Attendance, error) {
	return queryOne(ctx, s.db, scanAttendance, `SELECT `+attendanceColumns+` FROM attendances WHERE id = ?`, id)
}

// FindAttendance returns the check-in of memberKey at exactly at.
func (s *SQLiteStore) FindAttendance(ctx context.Context, memberKey string, at time.Time) (*types.Attendance, error) {
	return queryOne(ctx, s.db, scanAttendance,
		`SELECT `+attendanceColumns+` FROM attendances WHERE member_key = ? AND checked_in_at = ? LIMIT 1`,
		memberKey, formatTime(at))
}

// AttendancesBetween returns check-ins in [from, to), newest first.
func (s *SQLiteStore) AttendancesBetween(ctx context.Context, from, to time.Time) ([]types.Attendance, error) {
	atts, err := queryAll(ctx, s.db, scanAttendance,
		`SELECT `+attendanceColumns+` FROM attendances
		WHERE checked_in_at >= ? AND checked_in_at < ?
		ORDER BY checked_in_at DESC, id DESC`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("attendances between: %w", err)
	}
	return atts, nil
}

// AttendancesForMember returns an identity's check-ins, newest first.
func (s *SQLiteStore) AttendancesForMember(ctx context.Context, memberKey string) ([]types.Attendance, error) {
	atts, err := queryAll(ctx, s.db, scanAttendance,
		`SELECT `+attendanceColumns+` FROM attendances WHERE member_key = ? ORDER BY checked_in_at DESC, id DESC`,
		memberKey)
	if err != nil {
		return nil, fmt.Errorf("attendances for member: %w", err)
	}
	return atts, nil
}

// ListAttendances returns every check-in in local id order.
func (s *SQLiteStore) ListAttendances(ctx context.Context) ([]types.Attendance, error) {
	atts, err := queryAll(ctx, s.db, scanAttendance, `SELECT `+attendanceColumns+` FROM attendances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	return atts, nil
}

// CountAttendances returns the number of check-ins in [from, to).
func (s *SQLiteStore) CountAttendances(ctx context.Context, from, to time.Time) (int64, error) {
	return count(ctx, s.db,
		`SELECT COUNT(*) FROM attendances WHERE checked_in_at >= ? AND checked_in_at < ?`,
		formatTime(from), formatTime(to))
}
