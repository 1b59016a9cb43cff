package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperengineering/frontdesk/internal/types"
)

const catalogColumns = `id, description, price, days_active, active`

func scanCatalogPlan(sc scanner) (types.CatalogPlan, error) {
	var p types.CatalogPlan
	err := sc.Scan(&p.ID, &p.Description, &p.Price, &p.DaysActive, &p.Active)
	return p, err
}

// ReplaceCatalog swaps the cached system plan catalog for plans.
func (s *SQLiteStore) ReplaceCatalog(ctx context.Context, plans []types.CatalogPlan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_catalog`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	fetchedAt := formatTime(s.clock())
	for _, p := range plans {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plan_catalog (id, description, price, days_active, active, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Description, p.Price, p.DaysActive, boolToInt(p.Active), fetchedAt,
		); err != nil {
			return fmt.Errorf("insert catalog plan %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListCatalog returns cached catalog plans ordered by description.
func (s *SQLiteStore) ListCatalog(ctx context.Context, activeOnly bool) ([]types.CatalogPlan, error) {
	query := `SELECT ` + catalogColumns + ` FROM plan_catalog`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY description, id`
	plans, err := queryAll(ctx, s.db, scanCatalogPlan, query)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return plans, nil
}

// GetCatalogPlan returns the cached catalog plan with the given id.
func (s *SQLiteStore) GetCatalogPlan(ctx context.Context, id string) (*types.CatalogPlan, error) {
	return queryOne(ctx, s.db, scanCatalogPlan, `SELECT `+catalogColumns+` FROM plan_catalog WHERE id = ?`, id)
}

// Meta keys.
const (
	MetaDeviceID   = "device_id"
	MetaLastSyncAt = "last_sync_at"
	MetaLastSyncID = "last_sync_id"
)

// GetMeta returns a sync metadata value.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return v, nil
}

// SetMeta stores a sync metadata value.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// DeviceID returns this store's device id, generating and persisting one on
// first use.
func (s *SQLiteStore) DeviceID(ctx context.Context) (string, error) {
	id, err := s.GetMeta(ctx, MetaDeviceID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sync_meta (key, value) VALUES (?, ?)`, MetaDeviceID, id); err != nil {
		return "", fmt.Errorf("store device id: %w", err)
	}
	return s.GetMeta(ctx, MetaDeviceID)
}
