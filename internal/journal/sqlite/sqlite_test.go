package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/localpulse/pulsectl/internal/journal"
)

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLastOnEmptyJournal(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	_, found, err := db.Last(ctx)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if found {
		t.Fatalf("empty journal must report found=false")
	}
}

func TestAppendAndLast(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	first := journal.Record{At: time.Now().Add(-time.Minute), Event: journal.EventStart, PID: 1234}
	second := journal.Record{At: time.Now(), Event: journal.EventStop, PID: 1234, Detail: "operator stop"}
	if err := db.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := db.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec, found, err := db.Last(ctx)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if !found {
		t.Fatalf("expected a record")
	}
	if rec.Event != journal.EventStop || rec.PID != 1234 || rec.Detail != "operator stop" {
		t.Fatalf("unexpected last record: %+v", rec)
	}
}
