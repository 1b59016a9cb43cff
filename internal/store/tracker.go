package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Changes is a column to value change set for a tracked write to one of the
// syncable tables. Every create and update of those tables goes through
// insertTracked or updateTracked, which rewrite the change set before it is
// applied:
//
//   - a normal write is a content change: updated_at is stamped with the
//     store clock and dirty is forced to 1, whatever the caller set;
//   - a write carrying the synced sentinel (see MarkSynced) is sync
//     bookkeeping: dirty is cleared and updated_at is left as given.
type Changes map[string]any

type syncedSentinel struct{}

const (
	colDirty     = "dirty"
	colUpdatedAt = "updated_at"
)

// MarkSynced tags c as a sync bookkeeping write and returns it.
func (c Changes) MarkSynced() Changes {
	c[colDirty] = syncedSentinel{}
	return c
}

// Synced reports whether c carries the synced sentinel.
func (c Changes) Synced() bool {
	_, ok := c[colDirty].(syncedSentinel)
	return ok
}

// bumpUpdatedAt stamps a content edit with the clock, or one millisecond past
// the stored stamp when the clock has not moved beyond it. Every edit then
// leaves a stamp no pushed snapshot of the row can carry, so MarkSynced never
// clears an edit made in the same millisecond as a push.
const bumpUpdatedAt = colUpdatedAt + ` = CASE WHEN julianday(updated_at) >= julianday(?)
	THEN strftime('%Y-%m-%dT%H:%M:%fZ', updated_at, '+0.001 seconds') ELSE ? END`

// track applies the dirty-tracking rule to c. The caller's map is not
// modified.
func track(c Changes, now time.Time, create bool) Changes {
	out := make(Changes, len(c)+2)
	for k, v := range c {
		out[k] = v
	}

	if c.Synced() {
		out[colDirty] = false
		if _, ok := out[colUpdatedAt]; !ok && create {
			out[colUpdatedAt] = now
		}
		return out
	}

	out[colUpdatedAt] = now
	out[colDirty] = true
	return out
}

// writableColumns lists the columns a tracked write may set per table.
var writableColumns = map[string]map[string]bool{
	"members": columnSet("member_key", "name", "phone", "deleted", colUpdatedAt, colDirty),
	"member_plans": columnSet("sync_key", "member_key", "plan_category", "plan_days", "catalog_id",
		"price", "is_promo", "notes", "start_at", "deleted", colUpdatedAt, colDirty,
		"registered_by", "registered_by_name"),
	"attendances": columnSet("legacy_ref", "member_key", "plan_key", "checked_in_at", "created_at",
		colUpdatedAt, colDirty),
	"staff": columnSet("staff_key", "name", "username", "credential", "role", "created_at",
		"deleted", colUpdatedAt, colDirty),
}

// nullableKeys are key columns stored as NULL when empty so their unique
// indexes admit any number of rows without a key.
var nullableKeys = map[string]bool{
	"members.member_key":     true,
	"member_plans.sync_key":  true,
	"attendances.member_key": true,
	"attendances.plan_key":   true,
	"staff.staff_key":        true,
}

func columnSet(cols ...string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sortedColumns validates c against the table's writable columns and returns
// the column names in a stable order with their SQL values.
func sortedColumns(table string, c Changes) ([]string, []any, error) {
	allowed, ok := writableColumns[table]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown table %q", ErrColumn, table)
	}

	cols := make([]string, 0, len(c))
	for col := range c {
		if !allowed[col] {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrColumn, table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = sqlValue(table, col, c[col])
	}
	return cols, args, nil
}

func sqlValue(table, col string, v any) any {
	switch val := v.(type) {
	case time.Time:
		return formatTime(val)
	case bool:
		return boolToInt(val)
	case string:
		if val == "" && nullableKeys[table+"."+col] {
			return nil
		}
		return val
	default:
		return v
	}
}

// insertTracked inserts a row built from c and returns its local id.
func (s *SQLiteStore) insertTracked(ctx context.Context, ex execer, table string, c Changes) (int64, error) {
	cols, args, err := sortedColumns(table, track(c, s.clock(), true))
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert %s: %w", table, ErrConflict)
		}
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

// updateTracked applies c to the rows matching where and returns the number
// of rows changed.
func (s *SQLiteStore) updateTracked(ctx context.Context, ex execer, table string, c Changes, where string, whereArgs ...any) (int64, error) {
	cols, args, err := sortedColumns(table, track(c, s.clock(), false))
	if err != nil {
		return 0, err
	}

	sets := make([]string, len(cols))
	values := make([]any, 0, len(args)+1)
	for i, col := range cols {
		if col == colUpdatedAt && !c.Synced() {
			sets[i] = bumpUpdatedAt
			values = append(values, args[i], args[i])
			continue
		}
		sets[i] = col + " = ?"
		values = append(values, args[i])
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)

	res, err := ex.ExecContext(ctx, query, append(values, whereArgs...)...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("update %s: %w", table, ErrConflict)
		}
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return res.RowsAffected()
}
