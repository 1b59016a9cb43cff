package e2e

import (
	"os"
	"os/exec"
	"testing"
)

var frontdeskBin string

func TestMain(m *testing.M) {
	frontdeskBin = envOrLookPath("FRONTDESK_BIN", "frontdesk")
	os.Exit(m.Run())
}

func envOrLookPath(envVar, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

func requireFrontdesk(t *testing.T) {
	t.Helper()
	if frontdeskBin == "" {
		t.Skip("frontdesk binary not available (set FRONTDESK_BIN or add to PATH)")
	}
}
