package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
)

type staffMap map[string]types.Staff

func (m staffMap) GetStaffByUsername(_ context.Context, username string) (*types.Staff, error) {
	st, ok := m[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func TestHashCredential_RoundTrip(t *testing.T) {
	hash, err := HashCredential("s3cret")
	if err != nil {
		t.Fatalf("HashCredential failed: %v", err)
	}
	if !strings.HasPrefix(hash, hashPrefix) {
		t.Errorf("hash %q lacks prefix", hash)
	}
	if strings.Contains(hash, "s3cret") {
		t.Error("hash contains the secret")
	}
	if !VerifyCredential(hash, "s3cret") {
		t.Error("correct secret rejected")
	}
	if VerifyCredential(hash, "wrong") {
		t.Error("wrong secret accepted")
	}

	other, _ := HashCredential("s3cret")
	if other == hash {
		t.Error("two hashes of one secret are equal; salt not applied")
	}
}

func TestVerifyCredential_LegacyPlainAndMalformed(t *testing.T) {
	if !VerifyCredential("1234", "1234") {
		t.Error("legacy plain credential rejected")
	}
	if VerifyCredential("1234", "12345") {
		t.Error("legacy plain credential accepted a different secret")
	}
	if VerifyCredential("argon2id$not-base64", "x") {
		t.Error("malformed hash accepted")
	}
}

func TestLogin(t *testing.T) {
	hash, err := HashCredential("pw")
	if err != nil {
		t.Fatalf("HashCredential failed: %v", err)
	}
	staff := staffMap{
		"ana":    {Key: "s-1", Name: "Ana", Username: "ana", Credential: hash, Role: types.RoleSuperAdmin},
		"legacy": {Key: "s-2", Name: "Leo", Username: "legacy", Credential: "plain", Role: types.RoleAdmin},
		"gone":   {Key: "s-3", Name: "Gil", Username: "gone", Credential: "pw", Role: types.RoleAdmin, Deleted: true},
	}
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		username string
		secret   string
		wantKey  string
		wantErr  error
	}{
		{"hashed credential", "ana", "pw", "s-1", nil},
		{"username is trimmed", " ana ", "pw", "s-1", nil},
		{"legacy plain credential", "legacy", "plain", "s-2", nil},
		{"wrong secret", "ana", "nope", "", ErrInvalidCredentials},
		{"unknown user", "who", "pw", "", ErrInvalidCredentials},
		{"deleted account", "gone", "pw", "", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := Login(context.Background(), staff, tt.username, tt.secret, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if sess.StaffKey != tt.wantKey || !sess.LoggedInAt.Equal(now) {
				t.Errorf("session = %+v", sess)
			}
		})
	}
}

func TestSession_IsSuperAdmin(t *testing.T) {
	var none *Session
	if none.IsSuperAdmin() {
		t.Error("nil session is super admin")
	}
	if (&Session{Role: types.RoleAdmin}).IsSuperAdmin() {
		t.Error("admin is super admin")
	}
	if !(&Session{Role: types.RoleSuperAdmin}).IsSuperAdmin() {
		t.Error("super admin not recognized")
	}
}
