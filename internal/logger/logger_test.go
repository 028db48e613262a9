package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithFileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsectl.log")
	cfg := Config{Level: "debug", Path: path, NoColor: true}
	log := cfg.New()
	log.Info("hello", "k", "v")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file copy not created at %s: %v", path, err)
	}
}

func TestOpenServiceLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "svc.log")

	f, err := OpenServiceLog(path)
	if err != nil {
		t.Fatalf("OpenServiceLog: %v", err)
	}
	if _, err := f.WriteString("first\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	f, err = OpenServiceLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.WriteString("second\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "first\nsecond\n" {
		t.Fatalf("reopen must append, got %q", b)
	}
}

func TestColorTextHandlerTagsLevels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Warn("grace period exceeded")
	out := buf.String()
	if !strings.Contains(out, "[WRN]") || !strings.Contains(out, "grace period exceeded") {
		t.Fatalf("unexpected warn rendering: %q", out)
	}

	buf.Reset()
	log.Error("port still bound")
	if !strings.Contains(buf.String(), "[ERR]") {
		t.Fatalf("unexpected error rendering: %q", buf.String())
	}
}

func TestValOr(t *testing.T) {
	if valOr(0, DefaultMaxSizeMB) != DefaultMaxSizeMB {
		t.Fatalf("zero should fall back to default")
	}
	if valOr(42, DefaultMaxSizeMB) != 42 {
		t.Fatalf("explicit value should win")
	}
}
