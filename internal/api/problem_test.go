package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/validation"
)

func TestWriteProblem_Fields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/rest/v1/members", nil)
	w := httptest.NewRecorder()

	WriteProblem(w, req, http.StatusUnauthorized, "Missing or invalid API key")

	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Type != "https://frontdesk.dev/errors/unauthorized" || p.Title != "Unauthorized" {
		t.Errorf("type/title = %q/%q", p.Type, p.Title)
	}
	if p.Status != http.StatusUnauthorized || p.Instance != "/rest/v1/members" {
		t.Errorf("status/instance = %d/%q", p.Status, p.Instance)
	}
	if p.Code != "" {
		t.Errorf("code = %q, want omitted", p.Code)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteProblem(w, req, http.StatusTeapot, "short and stout")

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Type != "https://frontdesk.dev/errors/unknown" || p.Title != http.StatusText(http.StatusTeapot) {
		t.Errorf("type/title = %q/%q", p.Type, p.Title)
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/rest/v1/members", nil)
	w := httptest.NewRecorder()

	WriteProblemWithErrors(w, req, "bad", []validation.ValidationError{{Field: "[0].nombre", Message: "contains null bytes"}})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Code != remote.CodeInvalidInput || len(p.Errors) != 1 || p.Errors[0].Field != "[0].nombre" {
		t.Errorf("unexpected problem %+v", p)
	}
}

func TestMapBackendError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantSQL  string
	}{
		{"unique", &remote.Error{Status: 409, Code: remote.CodeUniqueViolation, Message: "dup"}, 409, remote.CodeUniqueViolation},
		{"missing table", &remote.Error{Status: 404, Code: remote.CodeUndefinedTable, Message: "nope"}, 404, remote.CodeUndefinedTable},
		{"wrapped", fmt.Errorf("write: %w", &remote.Error{Status: 400, Code: remote.CodeNotNullViolation}), 400, remote.CodeNotNullViolation},
		{"unavailable", fmt.Errorf("%w: dial", remote.ErrUnavailable), 503, ""},
		{"upstream down", &remote.Error{Status: 503, Message: "no route"}, 503, ""},
		{"server side", &remote.Error{Status: 500, Code: "XX000", Message: "secret internals"}, 500, ""},
		{"other", errors.New("disk on fire"), 500, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rest/v1/members", nil)
			w := httptest.NewRecorder()

			MapBackendError(w, req, tt.err)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var p Problem
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.Code != tt.wantSQL {
				t.Errorf("code = %q, want %q", p.Code, tt.wantSQL)
			}
			if w.Code >= 500 && (p.Detail == "disk on fire" || p.Detail == "secret internals") {
				t.Error("internal error detail exposed")
			}
		})
	}
}
