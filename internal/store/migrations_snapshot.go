package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/schema"
)

// loadSnapshot reads the syncable tables under the layout of version.
func loadSnapshot(ctx context.Context, tx *sql.Tx, version int64) (schema.Snapshot, error) {
	switch version {
	case 2:
		return loadV2(ctx, tx)
	case 3:
		return loadV3(ctx, tx)
	case 4:
		return loadV4(ctx, tx)
	default:
		return nil, fmt.Errorf("no loader for version %d", version)
	}
}

// writeSnapshot inserts every row of snap with its original local id into
// freshly laid out tables.
func writeSnapshot(ctx context.Context, tx *sql.Tx, snap schema.Snapshot) error {
	switch s := snap.(type) {
	case schema.SnapshotV3:
		return writeV3(ctx, tx, s)
	case schema.SnapshotV4:
		return writeV4(ctx, tx, s)
	case schema.SnapshotV5:
		return writeV5(ctx, tx, s)
	default:
		return fmt.Errorf("no writer for version %d", snap.Version())
	}
}

const flatMemberColumns = `id, name, phone, plan_category, price, is_promo, notes, start_at, deleted, updated_at, dirty`

func scanFlatMember(scanner interface{ Scan(...any) error }, extra ...any) (schema.FlatMember, error) {
	var m schema.FlatMember
	var startAt, updatedAt string
	dest := []any{&m.ID, &m.Name, &m.Phone, &m.PlanCategory, &m.Price, &m.IsPromo,
		&m.Notes, &startAt, &m.Deleted, &updatedAt, &m.Dirty}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return m, err
	}
	m.StartAt = scanTime("start_at", startAt)
	m.UpdatedAt = scanTime("updated_at", updatedAt)
	return m, nil
}

const legacyAttendanceColumns = `id, checked_in_at, created_at, updated_at, dirty`

func scanLegacyAttendance(scanner interface{ Scan(...any) error }, extra ...any) (schema.LegacyAttendance, error) {
	var a schema.LegacyAttendance
	var checkedIn, created, updated string
	dest := []any{&a.ID, &checkedIn, &created, &updated, &a.Dirty}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return a, err
	}
	a.CheckedInAt = scanTime("checked_in_at", checkedIn)
	a.CreatedAt = scanTime("created_at", created)
	a.UpdatedAt = scanTime("updated_at", updated)
	return a, nil
}

func loadV2(ctx context.Context, tx *sql.Tx) (schema.SnapshotV2, error) {
	var snap schema.SnapshotV2

	rows, err := tx.QueryContext(ctx, `SELECT `+flatMemberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("query members: %w", err)
	}
	for rows.Next() {
		m, err := scanFlatMember(rows)
		if err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan member: %w", err)
		}
		snap.Members = append(snap.Members, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT `+legacyAttendanceColumns+`, member_id FROM attendances ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("query attendances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref int64
		a, err := scanLegacyAttendance(rows, &ref)
		if err != nil {
			return snap, fmt.Errorf("scan attendance: %w", err)
		}
		a.LegacyRef = ref
		snap.Attendances = append(snap.Attendances, a)
	}
	return snap, rows.Err()
}

func loadKeyedAttendances(ctx context.Context, tx *sql.Tx) ([]schema.KeyedAttendance, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+legacyAttendanceColumns+`, legacy_ref, member_key FROM attendances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query attendances: %w", err)
	}
	defer rows.Close()

	var out []schema.KeyedAttendance
	for rows.Next() {
		var ref int64
		var key sql.NullString
		a, err := scanLegacyAttendance(rows, &ref, &key)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		a.LegacyRef = ref
		out = append(out, schema.KeyedAttendance{LegacyAttendance: a, MemberKey: key.String})
	}
	return out, rows.Err()
}

func loadV3(ctx context.Context, tx *sql.Tx) (schema.SnapshotV3, error) {
	var snap schema.SnapshotV3

	rows, err := tx.QueryContext(ctx, `SELECT `+flatMemberColumns+`, member_key FROM members ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("query members: %w", err)
	}
	for rows.Next() {
		var key sql.NullString
		m, err := scanFlatMember(rows, &key)
		if err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan member: %w", err)
		}
		snap.Members = append(snap.Members, schema.KeyedMember{FlatMember: m, MemberKey: key.String})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	snap.Attendances, err = loadKeyedAttendances(ctx, tx)
	return snap, err
}

func loadV4(ctx context.Context, tx *sql.Tx) (schema.SnapshotV4, error) {
	var snap schema.SnapshotV4

	rows, err := tx.QueryContext(ctx,
		`SELECT `+flatMemberColumns+`, member_key, registered_by, registered_by_name FROM members ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("query members: %w", err)
	}
	for rows.Next() {
		var key, by, byName sql.NullString
		m, err := scanFlatMember(rows, &key, &by, &byName)
		if err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan member: %w", err)
		}
		snap.Members = append(snap.Members, schema.AttributedMember{
			KeyedMember:      schema.KeyedMember{FlatMember: m, MemberKey: key.String},
			RegisteredBy:     by.String,
			RegisteredByName: byName.String,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	snap.Attendances, err = loadKeyedAttendances(ctx, tx)
	return snap, err
}

func flatMemberArgs(m schema.FlatMember) []any {
	return []any{m.ID, m.Name, m.Phone, m.PlanCategory, m.Price, boolToInt(m.IsPromo),
		m.Notes, formatTime(m.StartAt), boolToInt(m.Deleted), formatTime(m.UpdatedAt), boolToInt(m.Dirty)}
}

func legacyAttendanceArgs(a schema.LegacyAttendance) []any {
	return []any{a.ID, formatTime(a.CheckedInAt), formatTime(a.CreatedAt), formatTime(a.UpdatedAt), boolToInt(a.Dirty)}
}

func writeKeyedAttendances(ctx context.Context, tx *sql.Tx, atts []schema.KeyedAttendance) error {
	for _, a := range atts {
		args := append(legacyAttendanceArgs(a.LegacyAttendance), a.LegacyRef, nullIfEmpty(a.MemberKey))
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO attendances (`+legacyAttendanceColumns+
			`, legacy_ref, member_key) VALUES (?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return fmt.Errorf("insert attendance %d: %w", a.ID, err)
		}
	}
	return nil
}

func writeV3(ctx context.Context, tx *sql.Tx, snap schema.SnapshotV3) error {
	for _, m := range snap.Members {
		args := append(flatMemberArgs(m.FlatMember), nullIfEmpty(m.MemberKey))
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO members (`+flatMemberColumns+
			`, member_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return fmt.Errorf("insert member %d: %w", m.ID, err)
		}
	}
	return writeKeyedAttendances(ctx, tx, snap.Attendances)
}

func writeV4(ctx context.Context, tx *sql.Tx, snap schema.SnapshotV4) error {
	for _, m := range snap.Members {
		args := append(flatMemberArgs(m.FlatMember), nullIfEmpty(m.MemberKey),
			nullIfEmpty(m.RegisteredBy), nullIfEmpty(m.RegisteredByName))
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO members (`+flatMemberColumns+
			`, member_key, registered_by, registered_by_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...); err != nil {
			return fmt.Errorf("insert member %d: %w", m.ID, err)
		}
	}
	return writeKeyedAttendances(ctx, tx, snap.Attendances)
}

func writeV5(ctx context.Context, tx *sql.Tx, snap schema.SnapshotV5) error {
	for _, m := range snap.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO members (id, member_key, name, phone, deleted, updated_at, dirty)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, nullIfEmpty(m.MemberKey), m.Name, m.Phone, boolToInt(m.Deleted),
			formatTime(m.UpdatedAt), boolToInt(m.Dirty),
		); err != nil {
			return fmt.Errorf("insert member %d: %w", m.ID, err)
		}
	}

	for _, p := range snap.Plans {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO member_plans (id, sync_key, member_key, plan_category, plan_days, price,
				is_promo, notes, start_at, deleted, updated_at, dirty, registered_by, registered_by_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, nullIfEmpty(p.SyncKey), p.MemberKey, p.PlanCategory, p.Days, p.Price,
			boolToInt(p.IsPromo), p.Notes, formatTime(p.StartAt), boolToInt(p.Deleted),
			formatTime(p.UpdatedAt), boolToInt(p.Dirty), p.RegisteredBy, p.RegisteredByName,
		); err != nil {
			return fmt.Errorf("insert plan %d: %w", p.ID, err)
		}
	}

	for _, a := range snap.Attendances {
		args := append(legacyAttendanceArgs(a.LegacyAttendance), a.LegacyRef,
			nullIfEmpty(a.MemberKey), nullIfEmpty(a.PlanKey))
		if _, err := tx.ExecContext(ctx, `INSERT INTO attendances (`+legacyAttendanceColumns+
			`, legacy_ref, member_key, plan_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return fmt.Errorf("insert attendance %d: %w", a.ID, err)
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
