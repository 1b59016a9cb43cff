// Package auth signs staff in against the local staff table, so the front
// desk keeps working offline. The signed-in principal is an explicit
// Session value handed to whatever records attribution.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidCredentials is returned for an unknown username, a wrong
	// secret, or a soft-deleted account. Callers cannot tell which.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrForbidden is returned when the session's role does not allow an action.
	ErrForbidden = errors.New("not allowed for this role")
)

const hashPrefix = "argon2id$"

// Session is the signed-in staff principal.
type Session struct {
	StaffKey   string
	Username   string
	Name       string
	Role       types.Role
	LoggedInAt time.Time
}

// IsSuperAdmin reports whether the session may manage staff accounts.
func (s *Session) IsSuperAdmin() bool {
	return s != nil && s.Role == types.RoleSuperAdmin
}

// StaffFinder looks staff accounts up by username.
type StaffFinder interface {
	GetStaffByUsername(ctx context.Context, username string) (*types.Staff, error)
}

// Login checks secret against the stored credential of username.
func Login(ctx context.Context, f StaffFinder, username, secret string, now time.Time) (*Session, error) {
	st, err := f.GetStaffByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup staff: %w", err)
	}
	if st.Deleted || !VerifyCredential(st.Credential, secret) {
		return nil, ErrInvalidCredentials
	}
	return &Session{
		StaffKey:   st.Key,
		Username:   st.Username,
		Name:       st.Name,
		Role:       st.Role,
		LoggedInAt: now,
	}, nil
}

// HashCredential returns a salted Argon2id hash of secret in the form
// argon2id$<salt>$<hash>, both base64.
func HashCredential(secret string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, 32)
	return hashPrefix +
		base64.StdEncoding.EncodeToString(salt) + "$" +
		base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyCredential compares secret with a stored credential. Values
// without the hash prefix are legacy plain secrets and are compared as is.
func VerifyCredential(stored, secret string) bool {
	rest, hashed := strings.CutPrefix(stored, hashPrefix)
	if !hashed {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
	}

	encSalt, encHash, ok := strings.Cut(rest, "$")
	if !ok {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(encSalt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(encHash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
