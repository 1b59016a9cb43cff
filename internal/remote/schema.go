package remote

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/oklog/ulid/v2"
)

type kind int

const (
	kindText kind = iota
	kindBool
	kindNumber
	kindTime
)

type foreignKey struct {
	column string
	table  types.Collection
	target string
}

// tableDef mirrors one hub table of migrations/hub.
type tableDef struct {
	key       []string
	columns   map[string]kind
	required  []string
	defaults  map[string]any
	unique    [][]string
	refs      []foreignKey
	generated string // key column filled with a ULID when absent
}

const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

var tables = map[types.Collection]tableDef{
	types.CollectionMembers: {
		key: []string{"memberId"},
		columns: map[string]kind{
			"memberId": kindText, "nombre": kindText, "telefono": kindText,
			"deleted": kindBool, "updated_at": kindTime, createdAtColumn: kindTime,
		},
		required: []string{"memberId", "nombre", "updated_at"},
		defaults: map[string]any{"deleted": false, "telefono": nil},
	},
	types.CollectionMemberPlans: {
		key: []string{"id"},
		columns: map[string]kind{
			"id": kindText, "memberId": kindText, "plan_tipo": kindText, "plan_days": kindNumber,
			"plan_id": kindText, "costo": kindNumber, "is_promo": kindBool, "notes": kindText,
			"fecha_inicio": kindTime, "deleted": kindBool, "updated_at": kindTime,
			"registered_by": kindText, "registered_by_name": kindText, createdAtColumn: kindTime,
		},
		required: []string{"id", "memberId", "plan_tipo", "fecha_inicio", "updated_at"},
		defaults: map[string]any{
			"costo": float64(0), "is_promo": false, "deleted": false, "plan_days": nil,
			"plan_id": nil, "notes": nil, "registered_by": nil, "registered_by_name": nil,
		},
		refs: []foreignKey{{column: "memberId", table: types.CollectionMembers, target: "memberId"}},
	},
	types.CollectionAttendances: {
		key: []string{"id"},
		columns: map[string]kind{
			"id": kindText, "memberId": kindText, "member_plan_id": kindText,
			"fecha_hora": kindTime, createdAtColumn: kindTime,
		},
		required: []string{"memberId", "fecha_hora"},
		defaults: map[string]any{"member_plan_id": nil},
		unique:   [][]string{{"memberId", "fecha_hora"}},
		refs: []foreignKey{
			{column: "memberId", table: types.CollectionMembers, target: "memberId"},
			{column: "member_plan_id", table: types.CollectionMemberPlans, target: "id"},
		},
		generated: "id",
	},
	types.CollectionStaff: {
		key: []string{"staffId"},
		columns: map[string]kind{
			"staffId": kindText, "nombre": kindText, "username": kindText, "password": kindText,
			"role": kindText, "deleted": kindBool, "updated_at": kindTime, createdAtColumn: kindTime,
		},
		required: []string{"staffId", "nombre", "username", "password", "role", "updated_at"},
		defaults: map[string]any{"deleted": false},
		unique:   [][]string{{"username"}},
	},
	types.CollectionPlans: {
		key: []string{"id"},
		columns: map[string]kind{
			"id": kindText, "description": kindText, "price": kindNumber,
			"days_active": kindNumber, "active": kindBool,
		},
		required: []string{"id", "description", "days_active"},
		defaults: map[string]any{"price": float64(0), "active": true},
	},
}

func lookupTable(c types.Collection) (tableDef, error) {
	def, ok := tables[c]
	if !ok {
		return tableDef{}, newError(CodeUndefinedTable, "relation %q does not exist", c)
	}
	return def, nil
}

// versioned reports whether rows of the table carry a last-modified time.
// Merges into a versioned table only apply strictly newer rows.
func (d tableDef) versioned() bool {
	_, ok := d.columns[updatedAtColumn]
	return ok
}

// supersedes reports whether incoming may overwrite existing on a merge.
// Timestamps are in canonical form, so they order as text.
func (d tableDef) supersedes(incoming, existing Record) bool {
	if !d.versioned() {
		return true
	}
	in, _ := incoming[updatedAtColumn].(string)
	cur, _ := existing[updatedAtColumn].(string)
	return in > cur
}

// conflictTarget resolves the columns a write is keyed by. They must match
// the primary key or a unique constraint.
func (d tableDef) conflictTarget(onConflict []string) ([]string, error) {
	if len(onConflict) == 0 {
		return d.key, nil
	}
	candidates := append([][]string{d.key}, d.unique...)
	for _, c := range candidates {
		if sameColumns(c, onConflict) {
			return c, nil
		}
	}
	return nil, newError(CodeInvalidConflict,
		"there is no unique or exclusion constraint matching the ON CONFLICT specification (%s)",
		strings.Join(onConflict, ","))
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// prepare validates rec against the table and returns the row to insert:
// timestamps canonicalized, defaults filled, a generated key assigned and
// created_at stamped when absent.
func (d tableDef) prepare(rec Record, now time.Time) (Record, error) {
	out := make(Record, len(d.columns))
	for col, v := range rec {
		k, ok := d.columns[col]
		if !ok {
			return nil, newError(CodeUndefinedColumn, "column %q does not exist", col)
		}
		nv, err := normalizeValue(col, k, v)
		if err != nil {
			return nil, err
		}
		out[col] = nv
	}

	if d.generated != "" && out[d.generated] == nil {
		out[d.generated] = ulid.Make().String()
	}
	if _, ok := d.columns[createdAtColumn]; ok && out[createdAtColumn] == nil {
		out[createdAtColumn] = formatInstant(now)
	}
	for col, v := range d.defaults {
		if _, ok := out[col]; !ok {
			out[col] = v
		}
	}
	for _, col := range d.required {
		if out[col] == nil {
			return nil, newError(CodeNotNullViolation, "null value in column %q violates not-null constraint", col)
		}
	}
	return out, nil
}

func normalizeValue(col string, k kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case kindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case kindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case kindNumber:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case kindTime:
		if s, ok := v.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, newError(CodeInvalidInput, "invalid timestamp for %q: %s", col, s)
			}
			return formatInstant(t), nil
		}
	}
	return nil, newError(CodeInvalidInput, "invalid value for %q: %v", col, v)
}

// formatInstant is the canonical timestamp text kept by the memory backend.
func formatInstant(t time.Time) string {
	return types.CanonicalInstant(t).Format("2006-01-02T15:04:05.000Z")
}

func keyOf(rec Record, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(rec[c])
	}
	return strings.Join(parts, "\x00")
}
