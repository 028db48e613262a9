package factory

import (
	"errors"
	"strings"

	"github.com/localpulse/pulsectl/internal/journal"
	pg "github.com/localpulse/pulsectl/internal/journal/postgres"
	sq "github.com/localpulse/pulsectl/internal/journal/sqlite"
)

// NewFromDSN selects a journal sink based on DSN.
// Supported:
//   - sqlite:  "sqlite://<path>" or bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (journal.Sink, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(strings.TrimPrefix(d, "sqlite://"))
	}
	// default to sqlite path
	return sq.New(d)
}
