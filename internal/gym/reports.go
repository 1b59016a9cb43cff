package gym

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
)

// PlanEntry is one plan in a member's history.
type PlanEntry struct {
	Plan      types.MemberPlan       `json:"plan"`
	ExpiresAt time.Time              `json:"expires_at"`
	Status    types.MembershipStatus `json:"status"`
}

// History is everything recorded for one member.
type History struct {
	Member      types.Member       `json:"member"`
	Plans       []PlanEntry        `json:"plans"`
	Attendances []types.Attendance `json:"attendances"`
}

// History returns every plan the member ever had, removed ones included,
// newest first, and their check-ins.
func (s *Service) History(ctx context.Context, memberKey string) (*History, error) {
	m, err := s.store.GetMemberByKey(ctx, memberKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	plans, err := s.store.PlansForMember(ctx, memberKey)
	if err != nil {
		return nil, fmt.Errorf("plans for member: %w", err)
	}
	types.SortPlansNewestFirst(plans)

	now := s.now()
	h := &History{Member: *m, Plans: make([]PlanEntry, len(plans))}
	for i, p := range plans {
		h.Plans[i] = PlanEntry{
			Plan:      p,
			ExpiresAt: types.ExpirationDate(p, s.loc),
			Status:    types.Status(p, now, s.loc),
		}
	}

	atts, err := s.store.AttendancesForMember(ctx, memberKey)
	if err != nil {
		return nil, err
	}
	h.Attendances = atts
	return h, nil
}

// ReportRow is one check-in in an attendance report.
type ReportRow struct {
	Attendance types.Attendance   `json:"attendance"`
	MemberName string             `json:"member_name"`
	Category   types.PlanCategory `json:"plan_category,omitempty"`
}

// AttendanceReport lists check-ins between the calendar days holding from
// and to, both inclusive, newest first. A non-empty nameFilter keeps rows
// whose member name contains it, ignoring case.
func (s *Service) AttendanceReport(ctx context.Context, from, to time.Time, nameFilter string) ([]ReportRow, error) {
	start := startOfDay(from, s.loc)
	end := startOfDay(to, s.loc).AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, nil
	}

	atts, err := s.store.AttendancesBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("attendance report: %w", err)
	}

	r := &resolver{store: s.store, names: map[string]string{}}
	filter := types.NormalizeName(nameFilter)
	var rows []ReportRow
	for _, a := range atts {
		row, err := r.row(ctx, a)
		if err != nil {
			return nil, err
		}
		if filter != "" && !strings.Contains(types.NormalizeName(row.MemberName), filter) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// resolver names the member and plan behind a check-in, preferring identity
// keys and falling back to the legacy plan back-reference.
type resolver struct {
	store Store
	names map[string]string
}

func (r *resolver) row(ctx context.Context, a types.Attendance) (ReportRow, error) {
	row := ReportRow{Attendance: a}

	var legacy *types.MemberPlan
	if a.LegacyRef != 0 && (a.MemberKey == "" || a.PlanKey == "") {
		p, err := r.store.GetPlan(ctx, a.LegacyRef)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return row, err
		}
		legacy = p
	}

	memberKey := a.MemberKey
	if memberKey == "" && legacy != nil {
		memberKey = legacy.MemberKey
	}
	name, err := r.memberName(ctx, memberKey)
	if err != nil {
		return row, err
	}
	row.MemberName = name

	if a.PlanKey != "" {
		p, err := r.store.GetPlanByKey(ctx, a.PlanKey)
		switch {
		case err == nil:
			row.Category = p.Category
		case !errors.Is(err, store.ErrNotFound):
			return row, err
		}
	} else if legacy != nil {
		row.Category = legacy.Category
	}
	return row, nil
}

func (r *resolver) memberName(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if name, ok := r.names[key]; ok {
		return name, nil
	}
	m, err := r.store.GetMemberByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		r.names[key] = ""
		return "", nil
	}
	if err != nil {
		return "", err
	}
	r.names[key] = m.Name
	return m.Name, nil
}
