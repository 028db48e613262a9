// Package journal records supervisor lifecycle transitions in a local or
// remote store. The journal is diagnostic only: append failures are
// reported as warnings by callers and never block a lifecycle operation.
package journal

import (
	"context"
	"time"
)

// Events recorded by the supervisor.
const (
	EventCleanup     = "cleanup"
	EventStart       = "start"
	EventStartFailed = "start_failed"
	EventStop        = "stop"
	EventRestart     = "restart"
)

type Record struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	PID    int       `json:"pid"`
	Detail string    `json:"detail,omitempty"`
}

// Sink persists lifecycle records.
type Sink interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, rec Record) error
	// Last returns the most recent record; found is false for an empty journal.
	Last(ctx context.Context) (rec Record, found bool, err error)
	Close() error
}
