package types

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// defaultPlanDays is the duration used when a plan has no explicit day count.
var defaultPlanDays = map[PlanCategory]int{
	PlanMonthly:  31,
	PlanBiweekly: 15,
	PlanDay:      1,
}

const fallbackPlanDays = 31

// DurationDays returns the plan length in days, falling back to the
// category default when Days is unset.
func (p MemberPlan) DurationDays() int {
	if p.Days > 0 {
		return p.Days
	}
	if d, ok := defaultPlanDays[p.Category]; ok {
		return d
	}
	return fallbackPlanDays
}

// ExpirationDate returns the last instant the plan is valid: the end of the
// local day that is DurationDays-1 days after the start day. The start day
// counts as the first day.
func ExpirationDate(p MemberPlan, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := p.StartAt.In(loc).Date()
	lastDay := time.Date(y, m, d+p.DurationDays()-1, 0, 0, 0, 0, loc)
	return lastDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Status reports whether the plan is active at now.
func Status(p MemberPlan, now time.Time, loc *time.Location) MembershipStatus {
	if now.After(ExpirationDate(p, loc)) {
		return StatusExpired
	}
	return StatusActive
}

// CurrentPlan returns the non-deleted plan with the latest start.
func CurrentPlan(plans []MemberPlan) (MemberPlan, bool) {
	var current MemberPlan
	found := false
	for _, p := range plans {
		if p.Deleted {
			continue
		}
		if !found || p.StartAt.After(current.StartAt) {
			current = p
			found = true
		}
	}
	return current, found
}

// SortPlansNewestFirst orders plans by start, latest first.
func SortPlansNewestFirst(plans []MemberPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].StartAt.After(plans[j].StartAt)
	})
}

// NormalizeName folds case and trims surrounding whitespace so repeated
// entries for the same person compare equal.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
