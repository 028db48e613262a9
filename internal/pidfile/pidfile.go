// Package pidfile persists the PID of the current supervised instance.
// The record is a single file: first line is the PID, second line a JSON
// meta object carrying the process start time so a recycled PID is not
// mistaken for the service.
package pidfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type Meta struct {
	StartUnix int64 `json:"start_unix"`
}

// Store owns one PID record file. The supervisor is the single writer.
type Store struct {
	Path string
}

func NewStore(path string) *Store { return &Store{Path: path} }

// Read returns the recorded PID. A missing file yields (0, false, nil):
// "no known running instance" is a normal state, not an error.
func (s *Store) Read() (int, bool, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	pidLine, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, false, fmt.Errorf("invalid pid record %s: %w", s.Path, err)
	}
	return pid, true, nil
}

// Write atomically replaces the record via write-to-temp-then-rename so a
// crash can never leave a partially written file observable.
func (s *Store) Write(pid int) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(pid))
	buf.WriteByte('\n')
	if start := procStartUnix(pid); start > 0 {
		if mb, err := json.Marshal(Meta{StartUnix: start}); err == nil {
			buf.Write(mb)
			buf.WriteByte('\n')
		}
	}
	tmp, err := os.CreateTemp(dir, ".pid-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.Path)
}

// Clear removes the record. Removing an absent record is success.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsStale reports whether pid no longer refers to the recorded process:
// either no live process has the PID, or the PID has been recycled by an
// unrelated process (start time mismatch against the recorded meta).
func (s *Store) IsStale(pid int) bool {
	if !Alive(pid) {
		return true
	}
	meta, err := s.readMeta()
	if err != nil || meta.StartUnix <= 0 {
		return false
	}
	if cur := procStartUnix(pid); cur > 0 && cur != meta.StartUnix {
		return true
	}
	return false
}

func (s *Store) readMeta() (Meta, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return Meta{}, err
	}
	_, rest, _ := strings.Cut(string(b), "\n")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Meta{}, nil
	}
	var m Meta
	if err := json.Unmarshal([]byte(rest), &m); err != nil {
		return Meta{}, nil // legacy record with no meta line
	}
	return m, nil
}

// Alive returns true if a process with the given pid exists (or EPERM,
// which still proves existence).
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
