package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the supervisor's own log file.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the supervisor's own diagnostic logging.
// Console output always goes to stderr; when Path is set a rotating
// file copy is kept as well. Rotation parameters follow lumberjack semantics.
type Config struct {
	Level      string `mapstructure:"level"`       // debug|info|warn|error (default info)
	Path       string `mapstructure:"path"`        // optional rotating log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // megabytes before rotation (default 10)
	MaxBackups int    `mapstructure:"max_backups"` // number of backups to keep (default 3)
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	NoColor    bool   `mapstructure:"no_color"`
}

// New builds a slog.Logger per the config.
func (c Config) New() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}

	var console slog.Handler
	if c.NoColor {
		console = slog.NewTextHandler(os.Stderr, opts)
	} else {
		console = NewColorTextHandler(os.Stderr, opts)
	}

	if c.Path == "" {
		return slog.New(console)
	}

	_ = os.MkdirAll(filepath.Dir(c.Path), 0o750)
	fileW := &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
	file := slog.NewJSONHandler(fileW, opts)
	return slog.New(multiHandler{console, file})
}

// OpenServiceLog opens the child's log stream for appending. The child
// inherits the descriptor directly so the stream keeps working after the
// supervisor exits; rotation is left to the child's append semantics.
func OpenServiceLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	// #nosec G304 -- path comes from operator config
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// multiHandler fans a record out to every wrapped handler.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
