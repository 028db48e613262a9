// Package pulsectl supervises a single instance of the LocalPulse service:
// it guarantees at most one instance is bound to the service port, manages
// start/stop/restart, and recovers from crashes and stale state.
package pulsectl

import (
	"context"
	"io"

	"github.com/localpulse/pulsectl/internal/config"
	"github.com/localpulse/pulsectl/internal/datastore"
	"github.com/localpulse/pulsectl/internal/journal"
	"github.com/localpulse/pulsectl/internal/journal/factory"
	"github.com/localpulse/pulsectl/internal/lifecycle"
	"github.com/localpulse/pulsectl/internal/logtail"
	"github.com/localpulse/pulsectl/internal/matcher"
	"github.com/localpulse/pulsectl/internal/pidfile"
	"github.com/localpulse/pulsectl/internal/reclaim"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Status = lifecycle.Status

type State = lifecycle.State

const (
	StateStopped = lifecycle.StateStopped
	StateRunning = lifecycle.StateRunning
)

// Fatal and user-visible conditions, for errors.Is classification.
var (
	ErrPortStillBound  = reclaim.ErrPortStillBound
	ErrMissingArtifact = datastore.ErrMissingArtifact
	ErrStartupFailed   = lifecycle.ErrStartupFailed
	ErrLogFileAbsent   = logtail.ErrLogFileAbsent
)

// DefaultConfig returns the built-in LocalPulse configuration.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a TOML config over the defaults; empty path means defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Supervisor is a thin facade over internal/lifecycle.Controller.
// It provides a stable public API for embedding.
type Supervisor struct {
	inner *lifecycle.Controller
	tail  *logtail.Tailer
	sink  journal.Sink
}

func New(cfg Config) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Log.New()
	m := matcher.New()
	ports := reclaim.New(m, log)
	pids := pidfile.NewStore(cfg.Paths.PIDFile)

	var sink journal.Sink
	if cfg.Journal.DSN != "" {
		s, err := factory.NewFromDSN(cfg.Journal.DSN)
		if err != nil {
			log.Warn("lifecycle journal disabled", "dsn", cfg.Journal.DSN, "error", err)
		} else if err := s.EnsureSchema(context.Background()); err != nil {
			log.Warn("lifecycle journal disabled", "dsn", cfg.Journal.DSN, "error", err)
			_ = s.Close()
		} else {
			sink = s
		}
	}

	return &Supervisor{
		inner: lifecycle.New(cfg, m, ports, pids, sink, log),
		tail:  &logtail.Tailer{Path: cfg.Paths.ServiceLog},
		sink:  sink,
	}, nil
}

func (s *Supervisor) Start(ctx context.Context) error   { return s.inner.Start(ctx) }
func (s *Supervisor) Stop(ctx context.Context) error    { return s.inner.Stop(ctx) }
func (s *Supervisor) Restart(ctx context.Context) error { return s.inner.Restart(ctx) }

func (s *Supervisor) Status(ctx context.Context) (Status, error) { return s.inner.Status(ctx) }

// Logs streams the service log to w from the current end of file until
// ctx is cancelled.
func (s *Supervisor) Logs(ctx context.Context, w io.Writer) error {
	return s.tail.Follow(ctx, w)
}

func (s *Supervisor) Close() error {
	if s.sink != nil {
		return s.sink.Close()
	}
	return nil
}
