package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// timeLayout is the stored form of every timestamp. It is fixed width so
// text comparison in SQL orders instants correctly.
const timeLayout = "2006-01-02T15:04:05.000Z"

// legacyLayouts are accepted when reading rows written before timestamps
// were canonicalized.
var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func formatTime(t time.Time) string {
	return types.CanonicalInstant(t).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.CanonicalInstant(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

// scanTime parses a stored timestamp, logging and returning the zero time
// when the value is malformed.
func scanTime(column, s string) time.Time {
	t, err := parseTime(s)
	if err != nil {
		slog.Warn("store: failed to parse timestamp", "column", column, "value", s, "error", err)
	}
	return t
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces the wall clock used to stamp last-modified times.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}
