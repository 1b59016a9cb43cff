package schema

import (
	"sort"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// BackfillIdentities assigns a stable identity key to every flat member row.
// Rows whose names normalize to the same value share one key; the mapping
// lives only for this pass. Each attendance row is relinked through its
// legacy row reference. Every row changes shape, so every row is marked
// dirty with a fresh last-modified time.
func BackfillIdentities(in Snapshot, env Env) (Snapshot, error) {
	v2, ok := in.(SnapshotV2)
	if !ok {
		return nil, mismatch(2, in)
	}

	members := append([]FlatMember(nil), v2.Members...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	keyByName := make(map[string]string)
	keyByID := make(map[int64]string, len(members))
	out := SnapshotV3{
		Members:     make([]KeyedMember, 0, len(members)),
		Attendances: make([]KeyedAttendance, 0, len(v2.Attendances)),
	}

	for _, m := range members {
		norm := types.NormalizeName(m.Name)
		key, seen := keyByName[norm]
		if !seen || norm == "" {
			key = env.NewKey()
			if norm != "" {
				keyByName[norm] = key
			}
		}
		keyByID[m.ID] = key

		m.UpdatedAt = env.Now
		m.Dirty = true
		out.Members = append(out.Members, KeyedMember{FlatMember: m, MemberKey: key})
	}

	for _, a := range v2.Attendances {
		a.UpdatedAt = env.Now
		a.Dirty = true
		out.Attendances = append(out.Attendances, KeyedAttendance{
			LegacyAttendance: a,
			MemberKey:        keyByID[a.LegacyRef],
		})
	}

	return out, nil
}

// AddAttribution carries flat rows into the layout that records which staff
// account registered them. Existing rows have no attribution, and their
// synced content is unchanged, so dirty flags are left alone.
func AddAttribution(in Snapshot, _ Env) (Snapshot, error) {
	v3, ok := in.(SnapshotV3)
	if !ok {
		return nil, mismatch(3, in)
	}

	out := SnapshotV4{
		Members:     make([]AttributedMember, 0, len(v3.Members)),
		Attendances: append([]KeyedAttendance(nil), v3.Attendances...),
	}
	for _, m := range v3.Members {
		out.Members = append(out.Members, AttributedMember{KeyedMember: m})
	}
	return out, nil
}

// SplitPlans normalizes flat member rows into one identity row per key plus
// one plan row per flat row.
//
// Plan rows reuse the flat row's local id, so an attendance's legacy
// reference points straight at the plan it was checked in against. When
// that plan belongs to a different identity, or the reference is dangling,
// the attendance is linked to the identity's most recent plan instead. That
// fallback is a best-effort approximation: which plan was active at
// check-in time cannot be recovered for those rows.
//
// New plan rows keep the legacy soft-delete flag and last-modified time and
// are dirty. Identity and attendance rows change shape and get a fresh
// last-modified time. An identity is deleted only when every flat row that
// carried its key was deleted; its name and phone come from the row with
// the latest start.
func SplitPlans(in Snapshot, env Env) (Snapshot, error) {
	v4, ok := in.(SnapshotV4)
	if !ok {
		return nil, mismatch(4, in)
	}

	members := append([]AttributedMember(nil), v4.Members...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	out := SnapshotV5{
		Plans:       make([]Plan, 0, len(members)),
		Attendances: make([]LinkedAttendance, 0, len(v4.Attendances)),
	}

	identities := make(map[string]*Identity)
	latestStart := make(map[string]FlatMember)
	var order []string
	planByID := make(map[int64]Plan, len(members))
	plansByKey := make(map[string][]Plan)

	for _, m := range members {
		key := m.MemberKey
		if key == "" {
			key = env.NewKey()
		}

		plan := Plan{
			ID:               m.ID,
			SyncKey:          env.NewKey(),
			MemberKey:        key,
			PlanCategory:     m.PlanCategory,
			Price:            m.Price,
			IsPromo:          m.IsPromo,
			Notes:            m.Notes,
			StartAt:          m.StartAt,
			Deleted:          m.Deleted,
			UpdatedAt:        m.UpdatedAt,
			Dirty:            true,
			RegisteredBy:     m.RegisteredBy,
			RegisteredByName: m.RegisteredByName,
		}
		out.Plans = append(out.Plans, plan)
		planByID[plan.ID] = plan
		plansByKey[key] = append(plansByKey[key], plan)

		ident, seen := identities[key]
		if !seen {
			ident = &Identity{
				ID:        m.ID,
				MemberKey: key,
				Name:      m.Name,
				Phone:     m.Phone,
				Deleted:   m.Deleted,
			}
			identities[key] = ident
			latestStart[key] = m.FlatMember
			order = append(order, key)
			continue
		}
		if !m.StartAt.Before(latestStart[key].StartAt) {
			ident.Name = m.Name
			ident.Phone = m.Phone
			latestStart[key] = m.FlatMember
		}
		ident.Deleted = ident.Deleted && m.Deleted
	}

	out.Members = make([]Identity, 0, len(order))
	for _, key := range order {
		ident := identities[key]
		ident.UpdatedAt = env.Now
		ident.Dirty = true
		out.Members = append(out.Members, *ident)
	}

	for _, a := range v4.Attendances {
		linked := LinkedAttendance{KeyedAttendance: a}
		plan, direct := planByID[a.LegacyRef]
		if linked.MemberKey == "" && direct {
			linked.MemberKey = plan.MemberKey
		}
		switch {
		case direct && plan.MemberKey == linked.MemberKey:
			linked.PlanKey = plan.SyncKey
		case linked.MemberKey != "":
			if best, ok := mostRecentPlan(plansByKey[linked.MemberKey]); ok {
				linked.PlanKey = best.SyncKey
			}
		}
		linked.UpdatedAt = env.Now
		linked.Dirty = true
		out.Attendances = append(out.Attendances, linked)
	}

	return out, nil
}

// mostRecentPlan prefers the latest non-deleted plan and falls back to the
// latest plan of any state.
func mostRecentPlan(plans []Plan) (Plan, bool) {
	var best, bestAny Plan
	var found, foundAny bool
	for _, p := range plans {
		if !foundAny || p.StartAt.After(bestAny.StartAt) {
			bestAny, foundAny = p, true
		}
		if p.Deleted {
			continue
		}
		if !found || p.StartAt.After(best.StartAt) {
			best, found = p, true
		}
	}
	if found {
		return best, true
	}
	return bestAny, foundAny
}
