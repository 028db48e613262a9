// Package reclaim frees the service port before a start: occupants are
// asked to terminate, given a bounded grace period, then killed.
package reclaim

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"
)

// ErrPortStillBound means the port could not be freed even after SIGKILL.
// This is fatal and requires manual intervention; the supervisor must not
// proceed with a bound port.
var ErrPortStillBound = errors.New("port still bound")

// killWait bounds the re-check after SIGKILL; the kernel reclaims the
// socket quickly once the owner is gone.
const killWait = 500 * time.Millisecond

// PortMatcher resolves which PIDs hold a listening socket on a port.
type PortMatcher interface {
	FindByPort(port int) ([]int, error)
}

type Reclaimer struct {
	matcher PortMatcher
	logger  *slog.Logger

	// overridable for tests
	kill  func(pid int, sig syscall.Signal) error
	sleep func(d time.Duration)
}

func New(m PortMatcher, logger *slog.Logger) *Reclaimer {
	return &Reclaimer{
		matcher: m,
		logger:  logger,
		kill:    syscall.Kill,
		sleep:   time.Sleep,
	}
}

// EnsureFree verifies no process is listening on port, terminating
// occupants if needed. Signalling a PID that already exited is success.
func (r *Reclaimer) EnsureFree(port int, grace time.Duration) error {
	pids, err := r.matcher.FindByPort(port)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}

	r.logger.Warn("port occupied, terminating owners", "port", port, "pids", pids)
	r.signalAll(pids, syscall.SIGTERM)
	r.sleep(grace)

	pids, err = r.matcher.FindByPort(port)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}

	r.logger.Warn("owners survived grace period, escalating to SIGKILL", "port", port, "pids", pids)
	r.signalAll(pids, syscall.SIGKILL)
	r.sleep(killWait)

	pids, err = r.matcher.FindByPort(port)
	if err != nil {
		return err
	}
	if len(pids) > 0 {
		return fmt.Errorf("port %d held by %v after SIGKILL: %w", port, pids, ErrPortStillBound)
	}
	return nil
}

func (r *Reclaimer) signalAll(pids []int, sig syscall.Signal) {
	for _, pid := range pids {
		if err := r.kill(pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
			r.logger.Warn("signal failed", "pid", pid, "signal", sig.String(), "error", err)
		}
	}
}
