package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/frontdesk/internal/schema"
	"github.com/hyperengineering/frontdesk/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending local migrations. Plain layout changes
// come from the embedded SQL files; data-transforming upgrades come from
// schema.Steps and run inside the same goose transaction as their DDL.
func RunMigrations(ctx context.Context, db *sql.DB, now func() time.Time) error {
	p, err := newProvider(db, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigration, err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}
	for _, r := range results {
		slog.Info("applied local migration",
			"component", "store",
			"version", r.Source.Version,
			"duration", r.Duration,
		)
	}
	return nil
}

// migrateTo applies migrations up to and including version. Used to build
// historical layouts.
func migrateTo(ctx context.Context, db *sql.DB, version int64, now func() time.Time) error {
	p, err := newProvider(db, now)
	if err != nil {
		return err
	}
	_, err = p.UpTo(ctx, version)
	return err
}

func newProvider(db *sql.DB, now func() time.Time) (*goose.Provider, error) {
	var goMigrations []*goose.Migration
	for _, step := range schema.Steps() {
		goMigrations = append(goMigrations, goose.NewGoMigration(
			step.To,
			&goose.GoFunc{RunTx: stepRunner(step, now)},
			nil,
		))
	}
	return goose.NewProvider(goose.DialectSQLite3, db, migrations.Local(),
		goose.WithGoMigrations(goMigrations...),
	)
}

// stepRunner loads the rows of the step's source layout, applies the DDL,
// derives the new rows and writes them back, all in tx.
func stepRunner(step schema.Step, now func() time.Time) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		in, err := loadSnapshot(ctx, tx, step.From)
		if err != nil {
			return fmt.Errorf("%s: load v%d: %w", step.Name, step.From, err)
		}

		for _, stmt := range step.DDL {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: ddl: %w", step.Name, err)
			}
		}

		env := schema.Env{
			Now:    formatRoundTrip(now()),
			NewKey: uuid.NewString,
		}
		out, err := step.Transform(in, env)
		if err != nil {
			return fmt.Errorf("%s: transform: %w", step.Name, err)
		}
		if out.Version() != step.To {
			return fmt.Errorf("%s: produced v%d: %w", step.Name, out.Version(), schema.ErrVersionMismatch)
		}

		if err := writeSnapshot(ctx, tx, out); err != nil {
			return fmt.Errorf("%s: write v%d: %w", step.Name, step.To, err)
		}
		return nil
	}
}

// formatRoundTrip returns t as it will read back from storage.
func formatRoundTrip(t time.Time) time.Time {
	parsed, _ := parseTime(formatTime(t))
	return parsed
}
