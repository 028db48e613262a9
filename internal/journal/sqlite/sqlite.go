package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/localpulse/pulsectl/internal/journal"
)

// DB implements journal.Sink for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TIMESTAMP NOT NULL,
			event TEXT NOT NULL,
			pid INTEGER NOT NULL,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_event ON lifecycle_events(event);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Append(ctx context.Context, rec journal.Record) error {
	var detail sql.NullString
	if rec.Detail != "" {
		detail = sql.NullString{String: rec.Detail, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events(occurred_at, event, pid, detail)
		VALUES(?, ?, ?, ?);`,
		rec.At.UTC(), rec.Event, rec.PID, detail)
	return err
}

func (s *DB) Last(ctx context.Context) (journal.Record, bool, error) {
	var rec journal.Record
	var detail sql.NullString
	row := s.db.QueryRowContext(ctx, `
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

func (s *DB) Close() error { return s.db.Close() }
