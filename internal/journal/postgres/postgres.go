package postgres

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/localpulse/pulsectl/internal/journal"
)

// DB implements journal.Sink for PostgreSQL via the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_events(
			id BIGSERIAL PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			event TEXT NOT NULL,
			pid INTEGER NOT NULL,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_event ON lifecycle_events(event);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Append(ctx context.Context, rec journal.Record) error {
	var detail sql.NullString
	if rec.Detail != "" {
		detail = sql.NullString{String: rec.Detail, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events(occurred_at, event, pid, detail)
		VALUES($1, $2, $3, $4);`,
		rec.At.UTC(), rec.Event, rec.PID, detail)
	return err
}

func (p *DB) Last(ctx context.Context) (journal.Record, bool, error) {
	var rec journal.Record
	var detail sql.NullString
	row := p.db.QueryRowContext(ctx, `
		SELECT occurred_at, event, pid, detail
		FROM lifecycle_events ORDER BY id DESC LIMIT 1;`)
	if err := row.Scan(&rec.At, &rec.Event, &rec.PID, &detail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return journal.Record{}, false, nil
		}
		return journal.Record{}, false, err
	}
	rec.Detail = detail.String
	return rec, true, nil
}

func (p *DB) Close() error { return p.db.Close() }
