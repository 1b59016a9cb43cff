package remote

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// MemoryBackend is an in-process Backend with the hub schema's constraints.
// Rows are returned in insertion order.
type MemoryBackend struct {
	mu     sync.RWMutex
	rows   map[types.Collection][]Record
	now    func() time.Time
	writes int
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rows: make(map[types.Collection][]Record),
		now:  time.Now,
	}
}

func (m *MemoryBackend) Write(_ context.Context, c types.Collection, onConflict []string, res Resolution, recs []Record) error {
	def, err := lookupTable(c)
	if err != nil {
		return err
	}
	target, err := def.conflictTarget(onConflict)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Stage on a copy so a failing record leaves the table untouched.
	staged := append([]Record(nil), m.rows[c]...)
	now := m.now()

	for _, rec := range recs {
		row, err := def.prepare(rec, now)
		if err != nil {
			return err
		}
		if err := m.checkRefs(def, row); err != nil {
			return err
		}

		idx := find(staged, target, row)
		switch {
		case idx < 0:
			staged = append(staged, row)
			idx = len(staged) - 1
		case res == IgnoreDuplicates:
			continue
		case res == MergeDuplicates:
			if !def.supersedes(row, staged[idx]) {
				continue
			}
			merged := maps.Clone(staged[idx])
			for col := range rec {
				if col == createdAtColumn {
					continue
				}
				merged[col] = row[col]
			}
			staged[idx] = merged
		default:
			return newError(CodeUniqueViolation, "duplicate key value violates unique constraint on %s", c)
		}

		if err := checkUnique(def, staged, idx); err != nil {
			return err
		}
	}

	m.rows[c] = staged
	m.writes++
	return nil
}

func (m *MemoryBackend) checkRefs(def tableDef, row Record) error {
	for _, fk := range def.refs {
		v := row[fk.column]
		if v == nil {
			continue
		}
		if find(m.rows[fk.table], []string{fk.target}, Record{fk.target: v}) < 0 {
			return newError(CodeForeignKeyViolation,
				"insert or update violates foreign key constraint: %s=%v is not present in %s", fk.column, v, fk.table)
		}
	}
	return nil
}

// checkUnique verifies the row at idx shares no key or unique columns with
// another row.
func checkUnique(def tableDef, rows []Record, idx int) error {
	for _, cols := range append([][]string{def.key}, def.unique...) {
		k := keyOf(rows[idx], cols)
		for i, other := range rows {
			if i != idx && keyOf(other, cols) == k {
				return newError(CodeUniqueViolation, "duplicate key value violates unique constraint (%v)", cols)
			}
		}
	}
	return nil
}

func find(rows []Record, cols []string, rec Record) int {
	k := keyOf(rec, cols)
	for i, row := range rows {
		if keyOf(row, cols) == k {
			return i
		}
	}
	return -1
}

func (m *MemoryBackend) Read(_ context.Context, c types.Collection) ([]Record, error) {
	if _, err := lookupTable(c); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, len(m.rows[c]))
	for i, row := range m.rows[c] {
		out[i] = maps.Clone(row)
	}
	return out, nil
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Count returns the number of rows in c.
func (m *MemoryBackend) Count(c types.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows[c])
}

// Writes returns the number of successful Write calls.
func (m *MemoryBackend) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
