package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/types"
)

const staffColumns = `id, staff_key, name, username, credential, role, created_at, deleted, updated_at, dirty`

func scanStaff(sc scanner) (types.Staff, error) {
	var st types.Staff
	var key sql.NullString
	var created, updated string
	err := sc.Scan(&st.ID, &key, &st.Name, &st.Username, &st.Credential, &st.Role,
		&created, &st.Deleted, &updated, &st.Dirty)
	if err != nil {
		return st, err
	}
	st.Key = key.String
	st.CreatedAt = scanTime("created_at", created)
	st.UpdatedAt = scanTime("updated_at", updated)
	return st, nil
}

func staffChanges(st types.Staff) Changes {
	return Changes{
		"staff_key":  st.Key,
		"name":       st.Name,
		"username":   st.Username,
		"credential": st.Credential,
		"role":       string(st.Role),
		"created_at": st.CreatedAt,
		"deleted":    st.Deleted,
	}
}

// AddStaff creates a staff account. Usernames are unique; a duplicate
// returns ErrConflict.
func (s *SQLiteStore) AddStaff(ctx context.Context, st types.Staff) (*types.Staff, error) {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.clock()
	}
	id, err := s.insertTracked(ctx, s.db, "staff", staffChanges(st))
	if err != nil {
		return nil, fmt.Errorf("add staff: %w", err)
	}
	return s.GetStaff(ctx, id)
}

// UpdateStaff applies c to the staff account with the given local id.
func (s *SQLiteStore) UpdateStaff(ctx context.Context, id int64, c Changes) error {
	n, err := s.updateTracked(ctx, s.db, "staff", c, "id = ?", id)
	if err != nil {
		return fmt.Errorf("update staff %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetStaff(ctx context.Context, id int64) (*types.Staff, error) {
	return queryOne(ctx, s.db, scanStaff, `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id)
}

func (s *SQLiteStore) GetStaffByKey(ctx context.Context, key string) (*types.Staff, error) {
	return queryOne(ctx, s.db, scanStaff, `SELECT `+staffColumns+` FROM staff WHERE staff_key = ?`, key)
}

func (s *SQLiteStore) GetStaffByUsername(ctx context.Context, username string) (*types.Staff, error) {
	return queryOne(ctx, s.db, scanStaff, `SELECT `+staffColumns+` FROM staff WHERE username = ?`, username)
}

// ListStaff returns all live staff accounts ordered by username.
func (s *SQLiteStore) ListStaff(ctx context.Context) ([]types.Staff, error) {
	staff, err := queryAll(ctx, s.db, scanStaff,
		`SELECT `+staffColumns+` FROM staff WHERE deleted = 0 ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// CountStaff returns the number of live staff accounts.
func (s *SQLiteStore) CountStaff(ctx context.Context) (int64, error) {
	return count(ctx, s.db, `SELECT COUNT(*) FROM staff WHERE deleted = 0`)
}
