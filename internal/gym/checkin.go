package gym

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

const maxSearchResults = 10

// MemberStatus is a member with their current plan, if any.
type MemberStatus struct {
	Member    types.Member           `json:"member"`
	Plan      *types.MemberPlan      `json:"plan,omitempty"`
	ExpiresAt time.Time              `json:"expires_at"`
	Status    types.MembershipStatus `json:"status,omitempty"`
}

// CheckInResult is a recorded check-in and the plan it was made against.
type CheckInResult struct {
	Member     types.Member     `json:"member"`
	Plan       types.MemberPlan `json:"plan"`
	ExpiresAt  time.Time        `json:"expires_at"`
	Attendance types.Attendance `json:"attendance"`
}

// CheckIn records an attendance for the member against their current plan.
// It fails with ErrNoPlan or ErrPlanExpired when there is nothing to check
// in against.
func (s *Service) CheckIn(ctx context.Context, memberKey string) (*CheckInResult, error) {
	m, err := s.liveMember(ctx, memberKey)
	if err != nil {
		return nil, err
	}
	now := s.now()
	st, err := s.statusOf(ctx, *m, now)
	if err != nil {
		return nil, err
	}
	if st.Plan == nil {
		return nil, ErrNoPlan
	}
	if st.Status == types.StatusExpired {
		return nil, fmt.Errorf("%w: ended %s", ErrPlanExpired, st.ExpiresAt.In(s.loc).Format(time.DateOnly))
	}

	a, err := s.store.AddAttendance(ctx, types.Attendance{
		LegacyRef:   st.Plan.ID,
		MemberKey:   m.Key,
		PlanKey:     st.Plan.SyncKey,
		CheckedInAt: types.CanonicalInstant(now),
	})
	if err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}
	s.sync.Request()
	return &CheckInResult{Member: *m, Plan: *st.Plan, ExpiresAt: st.ExpiresAt, Attendance: *a}, nil
}

// Search finds members to check in. A query of digits matches the start of
// the phone number; anything else matches part of the name, ignoring case.
// Only members with an active plan are returned, at most ten.
func (s *Service) Search(ctx context.Context, query string) ([]MemberStatus, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var candidates []types.Member
	var err error
	if isDigits(query) {
		candidates, err = s.store.MembersByPhonePrefix(ctx, query)
	} else {
		candidates, err = s.store.ListMembers(ctx)
		candidates = filterByName(candidates, query)
	}
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}

	now := s.now()
	var out []MemberStatus
	for _, m := range candidates {
		st, err := s.statusOf(ctx, m, now)
		if err != nil {
			return nil, err
		}
		if st.Status != types.StatusActive {
			continue
		}
		out = append(out, st)
		if len(out) == maxSearchResults {
			break
		}
	}
	return out, nil
}

// Members lists every live member with their current plan status.
func (s *Service) Members(ctx context.Context) ([]MemberStatus, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]MemberStatus, 0, len(members))
	for _, m := range members {
		st, err := s.statusOf(ctx, m, now)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) statusOf(ctx context.Context, m types.Member, now time.Time) (MemberStatus, error) {
	st := MemberStatus{Member: m}
	plans, err := s.store.PlansForMember(ctx, m.Key)
	if err != nil {
		return st, fmt.Errorf("plans for member: %w", err)
	}
	current, ok := types.CurrentPlan(plans)
	if !ok {
		return st, nil
	}
	st.Plan = &current
	st.ExpiresAt = types.ExpirationDate(current, s.loc)
	st.Status = types.Status(current, now, s.loc)
	return st, nil
}

func filterByName(members []types.Member, query string) []types.Member {
	q := types.NormalizeName(query)
	var out []types.Member
	for _, m := range members {
		if strings.Contains(types.NormalizeName(m.Name), q) {
			out = append(out, m)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
