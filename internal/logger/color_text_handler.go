package logger

import (
	"context"
	"io"
	"log/slog"
)

const (
	ansiReset  = "\033[0m"
	ansiCyan   = "\033[36m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRedB   = "\033[1;31m" // bold red, errors should stand out on an operator terminal
)

// ColorTextHandler renders slog records through slog.TextHandler with a
// short colorized level tag prefixed to the message.
type ColorTextHandler struct {
	*slog.TextHandler
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Message = levelTag(r.Level) + " " + r.Message
	return h.TextHandler.Handle(ctx, r)
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return ansiCyan + "[DBG]" + ansiReset
	case l < slog.LevelWarn:
		return ansiGreen + "[INF]" + ansiReset
	case l < slog.LevelError:
		return ansiYellow + "[WRN]" + ansiReset
	default:
		return ansiRedB + "[ERR]" + ansiReset
	}
}
