// Package logtail streams the service log in follow mode. It performs no
// writes and may be interrupted at any point via context cancellation.
package logtail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrLogFileAbsent means the log stream does not exist yet. User-visible,
// but not fatal to the supervisor.
var ErrLogFileAbsent = errors.New("log file not found")

// pollInterval backs up fsnotify on filesystems without reliable events.
const pollInterval = time.Second

// Tailer follows one log file.
type Tailer struct {
	Path string
}

// Follow copies content appended to the log file to w, starting from the
// current end of file, until ctx is cancelled. Cancellation is a normal
// return, not an error. The file's directory is watched so a rotated or
// recreated log is picked up from its beginning.
func (t *Tailer) Follow(ctx context.Context, w io.Writer) error {
	f, err := os.Open(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", t.Path, ErrLogFileAbsent)
		}
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(t.Path)); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != t.Path {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				// log recreated after rotation; reopen from the top
				nf, err := os.Open(t.Path)
				if err != nil {
					continue
				}
				_ = f.Close()
				f = nf
			}
			if err := t.drain(f, w); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case <-ticker.C:
			if err := t.drain(f, w); err != nil {
				return err
			}
		}
	}
}

// drain copies everything between the current offset and EOF, rewinding
// first when the file shrank underneath us (truncation).
func (t *Tailer) drain(f *os.File, w io.Writer) error {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() < pos {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}
	_, err = io.Copy(w, f)
	return err
}
