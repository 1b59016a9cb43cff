// Package api is the hub: an HTTP server exposing the remote store to
// devices through the PostgREST subset remote.Client speaks.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/validation"
)

const (
	// MaxBodyBytes bounds one write request.
	MaxBodyBytes = 4 << 20

	// maxTextLength bounds any text value a device may write.
	maxTextLength = 2000
)

// Handler implements the API handlers
type Handler struct {
	backend remote.Backend
	apiKey  string
	version string
}

// NewHandler creates a Handler serving backend.
func NewHandler(backend remote.Backend, apiKey, version string) *Handler {
	return &Handler{
		backend: backend,
		apiKey:  apiKey,
		version: version,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health reports whether the backend answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: h.version})
}

// Select handles GET /rest/v1/{collection}. Only select=* is supported.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	if sel := r.URL.Query().Get("select"); sel != "" && sel != "*" {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Unsupported select %q: only * is served", sel))
		return
	}

	recs, err := h.backend.Read(r.Context(), CollectionFromContext(r.Context()))
	if err != nil {
		MapBackendError(w, r, err)
		return
	}
	if recs == nil {
		recs = []remote.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// Write handles POST /rest/v1/{collection}. The body is one record or an
// array; on_conflict names the key and the Prefer header picks what
// happens to rows whose key exists. Without a resolution an existing key is
// a unique violation.
func (h *Handler) Write(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := CollectionFromContext(ctx)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("Body exceeds %d bytes", MaxBodyBytes))
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, "Could not read body")
		return
	}

	recs, err := remote.DecodeRecords(data)
	if err != nil {
		MapBackendError(w, r, err)
		return
	}
	if errs := validateRecords(recs); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Records contain invalid text", errs)
		return
	}

	var onConflict []string
	if v := r.URL.Query().Get("on_conflict"); v != "" {
		onConflict = strings.Split(v, ",")
	}
	res := resolutionFromPrefer(r.Header.Get("Prefer"))

	if err := h.backend.Write(ctx, c, onConflict, res, recs); err != nil {
		slog.Info("write rejected",
			"component", "api",
			"collection", c,
			"records", len(recs),
			"error", err,
		)
		MapBackendError(w, r, err)
		return
	}

	slog.Debug("records written",
		"component", "api",
		"collection", c,
		"records", len(recs),
		"resolution", string(res),
	)
	w.WriteHeader(http.StatusCreated)
}

// resolutionFromPrefer extracts resolution=... from a Prefer header.
func resolutionFromPrefer(prefer string) remote.Resolution {
	for _, part := range strings.Split(prefer, ",") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), "resolution="); ok {
			switch remote.Resolution(v) {
			case remote.MergeDuplicates, remote.IgnoreDuplicates:
				return remote.Resolution(v)
			}
		}
	}
	return ""
}

// validateRecords applies the free-text checks to every string value.
func validateRecords(recs []remote.Record) []validation.ValidationError {
	c := &validation.Collector{}
	for i, rec := range recs {
		for col, v := range rec {
			s, ok := v.(string)
			if !ok {
				continue
			}
			validation.ValidateText(c, fmt.Sprintf("[%d].%s", i, col), s, maxTextLength)
		}
	}
	return c.Errors()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
