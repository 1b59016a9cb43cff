package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/frontdesk/internal/remote"
	"github.com/hyperengineering/frontdesk/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response. Code carries the
// SQLSTATE of a rejected write so clients can tell constraint failures apart.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

var problemTypes = map[int]problemType{
	http.StatusUnauthorized: {
		typeURI: "https://frontdesk.dev/errors/unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: "https://frontdesk.dev/errors/bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: "https://frontdesk.dev/errors/not-found",
		title:   "Not Found",
	},
	http.StatusInternalServerError: {
		typeURI: "https://frontdesk.dev/errors/internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: "https://frontdesk.dev/errors/validation-error",
		title:   "Validation Error",
	},
	http.StatusServiceUnavailable: {
		typeURI: "https://frontdesk.dev/errors/service-unavailable",
		title:   "Service Unavailable",
	},
	http.StatusConflict: {
		typeURI: "https://frontdesk.dev/errors/conflict",
		title:   "Conflict",
	},
	http.StatusRequestEntityTooLarge: {
		typeURI: "https://frontdesk.dev/errors/too-large",
		title:   "Request Entity Too Large",
	},
	http.StatusTooManyRequests: {
		typeURI: "https://frontdesk.dev/errors/rate-limit",
		title:   "Too Many Requests",
	},
}

func newProblem(r *http.Request, status int, detail string) Problem {
	pt, ok := problemTypes[status]
	if !ok {
		pt = problemType{
			typeURI: "https://frontdesk.dev/errors/unknown",
			title:   http.StatusText(status),
		}
	}
	return Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblem(w, newProblem(r, status, detail))
}

func writeProblem(w http.ResponseWriter, p any) {
	status := http.StatusInternalServerError
	switch v := p.(type) {
	case Problem:
		status = v.Status
	case ProblemWithErrors:
		status = v.Status
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	p := newProblem(r, http.StatusUnprocessableEntity, detail)
	p.Code = remote.CodeInvalidInput
	writeProblem(w, ProblemWithErrors{Problem: p, Errors: errs})
}

// MapBackendError converts a backend failure to a Problem Details response.
// Constraint rejections keep their status and SQLSTATE; anything else is
// an internal error whose details stay in the log.
func MapBackendError(w http.ResponseWriter, r *http.Request, err error) {
	var re *remote.Error
	switch {
	case errors.As(err, &re) && re.Status < http.StatusInternalServerError:
		p := newProblem(r, re.Status, re.Message)
		p.Code = re.Code
		writeProblem(w, p)
	case remote.IsUnavailable(err):
		slog.Error("backend unavailable", "component", "api", "path", r.URL.Path, "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Backend unavailable")
	default:
		slog.Error("backend failure", "component", "api", "path", r.URL.Path, "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
