package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/hyperengineering/frontdesk/migrations"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// PostgresBackend serves the remote store from Postgres.
type PostgresBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres connects to dsn and applies the hub schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Hub())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("hub migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("hub migrations: %w", err)
	}

	return &PostgresBackend{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

func (p *PostgresBackend) Write(ctx context.Context, c types.Collection, onConflict []string, res Resolution, recs []Record) error {
	def, err := lookupTable(c)
	if err != nil {
		return err
	}
	target, err := def.conflictTarget(onConflict)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := p.now()
	for _, rec := range recs {
		row, err := def.prepare(rec, now)
		if err != nil {
			return err
		}
		query, args := upsertSQL(string(c), target, res, def.versioned(), rec, row)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return mapPQError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapPQError(err)
	}
	return nil
}

// upsertSQL builds the insert for row. On conflict, merge updates only the
// columns the caller supplied, never created_at. For versioned tables the
// update only applies when the incoming updated_at is strictly newer.
func upsertSQL(table string, target []string, res Resolution, versioned bool, supplied, row Record) (string, []any) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}

	conflict := make([]string, len(target))
	for i, col := range target {
		conflict[i] = pq.QuoteIdentifier(col)
	}

	var sets []string
	for _, col := range cols {
		if _, ok := supplied[col]; !ok || col == createdAtColumn {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pq.QuoteIdentifier(col), pq.QuoteIdentifier(col)))
	}

	action := "DO NOTHING"
	if res == MergeDuplicates && len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
		if versioned {
			col := pq.QuoteIdentifier(updatedAtColumn)
			action += fmt.Sprintf(" WHERE %s.%s < EXCLUDED.%s", pq.QuoteIdentifier(table), col, col)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
		strings.Join(conflict, ", "), action)
	return query, args
}

func (p *PostgresBackend) Read(ctx context.Context, c types.Collection) ([]Record, error) {
	def, err := lookupTable(c)
	if err != nil {
		return nil, err
	}

	order := make([]string, len(def.key))
	for i, col := range def.key {
		order[i] = pq.QuoteIdentifier(col)
	}
	if _, ok := def.columns[createdAtColumn]; ok {
		order = append([]string{pq.QuoteIdentifier(createdAtColumn)}, order...)
	}

	query := fmt.Sprintf(`SELECT coalesce(json_agg(t), '[]'::json) FROM (SELECT * FROM %s ORDER BY %s) t`,
		pq.QuoteIdentifier(string(c)), strings.Join(order, ", "))

	var data []byte
	if err := p.db.QueryRowContext(ctx, query).Scan(&data); err != nil {
		return nil, mapPQError(err)
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	return recs, nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return &Error{Status: statusForCode(code), Code: code, Message: pqErr.Message}
	}
	return err
}
