package gym

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperengineering/frontdesk/internal/auth"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/hyperengineering/frontdesk/internal/validation"
)

const (
	minSecretLength   = 4
	maxUsernameLength = 64
)

var roles = []string{string(types.RoleSuperAdmin), string(types.RoleAdmin)}

// NewStaff is a staff account to create.
type NewStaff struct {
	Name     string
	Username string
	Secret   string
	Role     types.Role
}

// AddStaff creates a staff account. Only a super admin may add accounts,
// except for the first one on an empty device, which becomes a super admin
// unless another role is given.
func (s *Service) AddStaff(ctx context.Context, sess *auth.Session, n NewStaff) (*types.Staff, error) {
	existing, err := s.store.CountStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("count staff: %w", err)
	}
	if existing > 0 && !sess.IsSuperAdmin() {
		return nil, auth.ErrForbidden
	}
	if n.Role == "" {
		n.Role = types.RoleAdmin
		if existing == 0 {
			n.Role = types.RoleSuperAdmin
		}
	}

	v := &validation.Collector{}
	v.Add(validation.ValidateRequired("name", n.Name))
	validation.ValidateText(v, "name", n.Name, maxNameLength)
	v.Add(validation.ValidateRequired("username", n.Username))
	validation.ValidateText(v, "username", n.Username, maxUsernameLength)
	if strings.ContainsAny(strings.TrimSpace(n.Username), " \t") {
		v.Add(&validation.ValidationError{Field: "username", Message: "must not contain spaces"})
	}
	if len([]rune(n.Secret)) < minSecretLength {
		v.Add(&validation.ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minSecretLength)})
	}
	v.Add(validation.ValidateEnum("role", string(n.Role), roles))
	if err := v.Err(); err != nil {
		return nil, err
	}

	cred, err := auth.HashCredential(n.Secret)
	if err != nil {
		return nil, err
	}
	st, err := s.store.AddStaff(ctx, types.Staff{
		Key:        uuid.NewString(),
		Name:       strings.TrimSpace(n.Name),
		Username:   strings.TrimSpace(n.Username),
		Credential: cred,
		Role:       n.Role,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}
	s.sync.Request()
	return st, nil
}

// Staff lists live staff accounts.
func (s *Service) Staff(ctx context.Context) ([]types.Staff, error) {
	return s.store.ListStaff(ctx)
}
