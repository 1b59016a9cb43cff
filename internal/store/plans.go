package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/types"
)

const planColumns = `id, sync_key, member_key, plan_category, plan_days, catalog_id, price, is_promo,
	notes, start_at, deleted, updated_at, dirty, registered_by, registered_by_name`

func scanPlan(sc scanner) (types.MemberPlan, error) {
	var p types.MemberPlan
	var key sql.NullString
	var startAt, updatedAt string
	err := sc.Scan(&p.ID, &key, &p.MemberKey, &p.Category, &p.Days, &p.CatalogID, &p.Price,
		&p.IsPromo, &p.Notes, &startAt, &p.Deleted, &updatedAt, &p.Dirty,
		&p.RegisteredBy, &p.RegisteredByName)
	if err != nil {
		return p, err
	}
	p.SyncKey = key.String
	p.StartAt = scanTime("start_at", startAt)
	p.UpdatedAt = scanTime("updated_at", updatedAt)
	return p, nil
}

func planChanges(p types.MemberPlan) Changes {
	return Changes{
		"sync_key":           p.SyncKey,
		"member_key":         p.MemberKey,
		"plan_category":      string(p.Category),
		"plan_days":          p.Days,
		"catalog_id":         p.CatalogID,
		"price":              p.Price,
		"is_promo":           p.IsPromo,
		"notes":              p.Notes,
		"start_at":           p.StartAt,
		"deleted":            p.Deleted,
		"registered_by":      p.RegisteredBy,
		"registered_by_name": p.RegisteredByName,
	}
}

// AddPlan creates a plan instance.
func (s *SQLiteStore) AddPlan(ctx context.Context, p types.MemberPlan) (*types.MemberPlan, error) {
	id, err := s.insertTracked(ctx, s.db, "member_plans", planChanges(p))
	if err != nil {
		return nil, fmt.Errorf("add plan: %w", err)
	}
	return s.GetPlan(ctx, id)
}

// UpdatePlan applies c to the plan with the given local id.
func (s *SQLiteStore) UpdatePlan(ctx context.Context, id int64, c Changes) error {
	n, err := s.updateTracked(ctx, s.db, "member_plans", c, "id = ?", id)
	if err != nil {
		return fmt.Errorf("update plan %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPlan returns the plan with the given local id.
func (s *SQLiteStore) GetPlan(ctx context.Context, id int64) (*types.MemberPlan, error) {
	return queryOne(ctx, s.db, scanPlan, `SELECT `+planColumns+` FROM member_plans WHERE id = ?`, id)
}

// GetPlanByKey returns the plan with the given sync key.
func (s *SQLiteStore) GetPlanByKey(ctx context.Context, key string) (*types.MemberPlan, error) {
	return queryOne(ctx, s.db, scanPlan, `SELECT `+planColumns+` FROM member_plans WHERE sync_key = ?`, key)
}

// PlansForMember returns every plan of an identity, deleted ones included,
// latest start first.
func (s *SQLiteStore) PlansForMember(ctx context.Context, memberKey string) ([]types.MemberPlan, error) {
	plans, err := queryAll(ctx, s.db, scanPlan,
		`SELECT `+planColumns+` FROM member_plans WHERE member_key = ? ORDER BY start_at DESC, id DESC`,
		memberKey)
	if err != nil {
		return nil, fmt.Errorf("plans for member: %w", err)
	}
	return plans, nil
}

// ListPlans returns every plan row.
func (s *SQLiteStore) ListPlans(ctx context.Context) ([]types.MemberPlan, error) {
	plans, err := queryAll(ctx, s.db, scanPlan, `SELECT `+planColumns+` FROM member_plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}
