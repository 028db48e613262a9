//go:build !windows

package lifecycle

import (
	"bytes"
	"os"
	"strconv"
	"syscall"

	"github.com/localpulse/pulsectl/internal/pidfile"
)

// processGone reports whether pid no longer refers to a running process.
// It first attempts a non-blocking reap in case the process is our own
// child (a quickly-exiting child lingers as a zombie until reaped), then
// falls back to a signal-0 probe plus a zombie-state check.
func processGone(pid int) bool {
	var ws syscall.WaitStatus
	if wpid, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil); err == nil && wpid == pid {
		return true
	}
	if !pidfile.Alive(pid) {
		return true
	}
	return isZombie(pid)
}

// isZombie returns true if /proc/<pid>/status reports a zombie state (Z).
// Non-Linux systems report false; the Wait4 path covers our own children there.
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
