package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/types"
)

const memberColumns = `id, member_key, name, phone, deleted, updated_at, dirty`

func scanMember(sc scanner) (types.Member, error) {
	var m types.Member
	var key sql.NullString
	var updatedAt string
	if err := sc.Scan(&m.ID, &key, &m.Name, &m.Phone, &m.Deleted, &updatedAt, &m.Dirty); err != nil {
		return m, err
	}
	m.Key = key.String
	m.UpdatedAt = scanTime("updated_at", updatedAt)
	return m, nil
}

func memberChanges(m types.Member) Changes {
	return Changes{
		"member_key": m.Key,
		"name":       m.Name,
		"phone":      m.Phone,
		"deleted":    m.Deleted,
	}
}

// AddMember creates a member identity. The row is dirty and stamped with
// the store clock.
func (s *SQLiteStore) AddMember(ctx context.Context, m types.Member) (*types.Member, error) {
	id, err := s.insertTracked(ctx, s.db, "members", memberChanges(m))
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.GetMember(ctx, id)
}

// UpdateMember applies c to the member with the given local id.
func (s *SQLiteStore) UpdateMember(ctx context.Context, id int64, c Changes) error {
	n, err := s.updateTracked(ctx, s.db, "members", c, "id = ?", id)
	if err != nil {
		return fmt.Errorf("update member %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMember returns the member with the given local id.
func (s *SQLiteStore) GetMember(ctx context.Context, id int64) (*types.Member, error) {
	return queryOne(ctx, s.db, scanMember, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
}

// GetMemberByKey returns the member with the given identity key.
func (s *SQLiteStore) GetMemberByKey(ctx context.Context, key string) (*types.Member, error) {
	return queryOne(ctx, s.db, scanMember, `SELECT `+memberColumns+` FROM members WHERE member_key = ?`, key)
}

// ListMembers returns all live members ordered by name.
func (s *SQLiteStore) ListMembers(ctx context.Context) ([]types.Member, error) {
	members, err := queryAll(ctx, s.db, scanMember,
		`SELECT `+memberColumns+` FROM members WHERE deleted = 0 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// AllMembers returns every member row, deleted ones included, in local id
// order.
func (s *SQLiteStore) AllMembers(ctx context.Context) ([]types.Member, error) {
	members, err := queryAll(ctx, s.db, scanMember, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all members: %w", err)
	}
	return members, nil
}

// MembersByPhonePrefix returns live members whose phone starts with prefix.
func (s *SQLiteStore) MembersByPhonePrefix(ctx context.Context, prefix string) ([]types.Member, error) {
	members, err := queryAll(ctx, s.db, scanMember,
		`SELECT `+memberColumns+` FROM members
		WHERE deleted = 0 AND substr(phone, 1, length(?)) = ?
		ORDER BY name, id`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("members by phone: %w", err)
	}
	return members, nil
}

// CountMembers returns the number of live members.
func (s *SQLiteStore) CountMembers(ctx context.Context) (int64, error) {
	return count(ctx, s.db, `SELECT COUNT(*) FROM members WHERE deleted = 0`)
}
