package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable is returned when the remote store cannot be reached.
var ErrUnavailable = errors.New("remote store unavailable")

// SQLSTATE codes reported by the hub, following Postgres.
const (
	CodeNotNullViolation    = "23502"
	CodeForeignKeyViolation = "23503"
	CodeUniqueViolation     = "23505"
	CodeUndefinedColumn     = "42703"
	CodeUndefinedTable      = "42P01"
	CodeInvalidConflict     = "42P10"
	CodeInvalidInput        = "22P02"
)

// Error is a rejected remote call.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("remote %d: %s", e.Status, e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Status: statusForCode(code), Code: code, Message: fmt.Sprintf(format, args...)}
}

// statusForCode maps a SQLSTATE to the HTTP status PostgREST answers with.
func statusForCode(code string) int {
	switch code {
	case CodeForeignKeyViolation, CodeUniqueViolation:
		return http.StatusConflict
	case CodeUndefinedTable:
		return http.StatusNotFound
	case CodeNotNullViolation, CodeUndefinedColumn, CodeInvalidConflict, CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsUnavailable reports whether err means the remote store could not serve
// the call at all, as opposed to rejecting it. A 500 is a hub fault, not an
// outage.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	switch re.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
