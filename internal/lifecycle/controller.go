// Package lifecycle is the supervisor's state machine. A Controller is
// the sole entry point for the command surface: it sequences cleanup,
// port reclamation, environment preparation, spawn, liveness confirmation
// and termination, keeping the PID record consistent throughout.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/localpulse/pulsectl/internal/config"
	"github.com/localpulse/pulsectl/internal/datastore"
	"github.com/localpulse/pulsectl/internal/env"
	"github.com/localpulse/pulsectl/internal/journal"
	"github.com/localpulse/pulsectl/internal/logger"
	"github.com/localpulse/pulsectl/internal/pidfile"
	"github.com/localpulse/pulsectl/internal/spawn"
)

// Matcher finds service processes. Implemented by internal/matcher.
type Matcher interface {
	FindByCommandPattern(pattern string) ([]int, error)
	FindByPort(port int) ([]int, error)
}

// PortReclaimer frees the service port. Implemented by internal/reclaim.
type PortReclaimer interface {
	EnsureFree(port int, grace time.Duration) error
}

const (
	livenessPoll    = 50 * time.Millisecond
	killConfirmWait = 500 * time.Millisecond
)

type Controller struct {
	cfg     config.Config
	matcher Matcher
	ports   PortReclaimer
	pids    *pidfile.Store
	journal journal.Sink // nil when disabled
	logger  *slog.Logger

	// overridable for tests
	kill  func(pid int, sig syscall.Signal) error
	sleep func(d time.Duration)
}

func New(cfg config.Config, m Matcher, ports PortReclaimer, pids *pidfile.Store, sink journal.Sink, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		matcher: m,
		ports:   ports,
		pids:    pids,
		journal: sink,
		logger:  logger,
		kill:    syscall.Kill,
		sleep:   time.Sleep,
	}
}

// Start is valid from any state: it first converges on a clean slate
// (terminating prior instances, reclaiming the port), then spawns a fresh
// detached instance and confirms it survives the startup window.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("starting service", "name", c.cfg.Service.Name, "port", c.cfg.Service.Port)

	c.cleanup(ctx)

	if err := c.ports.EnsureFree(c.cfg.Service.Port, c.cfg.Timing.ReclaimGrace); err != nil {
		c.record(ctx, journal.EventStartFailed, 0, err.Error())
		return fmt.Errorf("reclaim port %d: %w", c.cfg.Service.Port, err)
	}

	environ := c.prepareEnv()

	if err := c.verifyArtifacts(ctx); err != nil {
		c.record(ctx, journal.EventStartFailed, 0, err.Error())
		return err
	}

	proc, err := c.spawnService(environ)
	if err != nil {
		c.record(ctx, journal.EventStartFailed, 0, err.Error())
		return fmt.Errorf("spawn service: %w", err)
	}
	if err := c.pids.Write(proc.Pid); err != nil {
		// the process is up; a missing record is recoverable via pattern fallback
		c.logger.Warn("could not persist pid record", "pid", proc.Pid, "error", err)
	}
	if err := c.confirmLiveness(proc.Pid); err != nil {
		_ = c.pids.Clear()
		c.record(ctx, journal.EventStartFailed, proc.Pid, "exited during startup confirmation")
		return err
	}
	_ = proc.Release()

	c.record(ctx, journal.EventStart, proc.Pid, "")
	c.logger.Info("service running",
		"pid", proc.Pid, "endpoint", c.cfg.Endpoint(), "log", c.cfg.Paths.ServiceLog)
	return nil
}

// Stop is valid from any state and idempotent: stopping a stopped service
// reports success.
func (c *Controller) Stop(ctx context.Context) error {
	pid, ok, err := c.pids.Read()
	if err != nil {
		c.logger.Warn("unreadable pid record, falling back to pattern match", "error", err)
		ok = false
	}
	if !ok {
		if n := c.stopByPattern(); n == 0 {
			c.logger.Info("service not running")
		} else {
			c.logger.Info("terminated unrecorded instances", "count", n)
			c.record(ctx, journal.EventStop, 0, "best-effort pattern stop")
		}
		_ = c.pids.Clear() // drop a corrupt record if that is why we got here
		return nil
	}
	if c.pids.IsStale(pid) {
		c.logger.Warn("pid record is stale, treating as stopped", "pid", pid)
		_ = c.pids.Clear()
		return nil
	}

	c.logger.Info("stopping service", "pid", pid)
	c.signal(pid, syscall.SIGTERM)
	if !c.waitGone(pid, c.cfg.Timing.StopGrace) {
		c.logger.Warn("service survived grace period, escalating to SIGKILL", "pid", pid)
		c.signal(pid, syscall.SIGKILL)
		if !c.waitGone(pid, killConfirmWait) {
			return fmt.Errorf("pid %d still alive after SIGKILL, manual intervention required", pid)
		}
	}
	_ = c.pids.Clear()
	c.record(ctx, journal.EventStop, pid, "")
	c.logger.Info("service stopped", "pid", pid)
	return nil
}

// Restart is stop, a short pause, then start. A failed stop does not block
// the start, whose own cleanup converges on a clean slate; a failed start
// is the restart's failure.
func (c *Controller) Restart(ctx context.Context) error {
	c.record(ctx, journal.EventRestart, 0, "")
	if err := c.Stop(ctx); err != nil {
		c.logger.Warn("stop before restart failed", "error", err)
	}
	c.sleep(c.cfg.Timing.RestartPause)
	return c.Start(ctx)
}

// Status derives the run state without mutating anything: a stale record
// reads as stopped but is left in place for start to clean up.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	st := Status{
		State:    StateStopped,
		Endpoint: c.cfg.Endpoint(),
		LogPath:  c.cfg.Paths.ServiceLog,
	}
	pid, ok, err := c.pids.Read()
	if err != nil {
		c.logger.Warn("unreadable pid record", "error", err)
	} else if ok {
		if c.pids.IsStale(pid) {
			c.logger.Warn("pid record is stale", "pid", pid)
		} else {
			st.State = StateRunning
			st.PID = pid
		}
	}
	if c.journal != nil {
		if rec, found, err := c.journal.Last(ctx); err != nil {
			c.logger.Warn("journal read failed", "error", err)
		} else if found {
			st.LastEvent = rec.Event
			st.LastEventAt = rec.At
		}
	}
	return st, nil
}

// cleanup terminates every process matching the service identity: orphans
// from prior crashes, instances started outside this supervisor, whatever
// holds the service port, and the recorded PID itself. Runs before the
// port check so the reclaimer usually finds the port already free.
func (c *Controller) cleanup(ctx context.Context) {
	targets := make(map[int]struct{})
	for _, pat := range c.cfg.Service.Patterns {
		pids, err := c.matcher.FindByCommandPattern(pat)
		if err != nil {
			c.logger.Warn("pattern scan failed", "pattern", pat, "error", err)
			continue
		}
		for _, pid := range pids {
			targets[pid] = struct{}{}
		}
	}
	if pids, err := c.matcher.FindByPort(c.cfg.Service.Port); err != nil {
		c.logger.Warn("port scan failed", "port", c.cfg.Service.Port, "error", err)
	} else {
		for _, pid := range pids {
			targets[pid] = struct{}{}
		}
	}
	if pid, ok, err := c.pids.Read(); err == nil && ok && !c.pids.IsStale(pid) {
		targets[pid] = struct{}{}
	}

	if len(targets) == 0 {
		c.clearStaleRecord()
		return
	}

	pids := make([]int, 0, len(targets))
	for pid := range targets {
		pids = append(pids, pid)
	}
	c.logger.Warn("terminating prior service instances", "pids", pids)
	c.terminate(pids)
	_ = c.pids.Clear()
	c.record(ctx, journal.EventCleanup, 0, fmt.Sprintf("terminated %d prior instances", len(pids)))
}

func (c *Controller) clearStaleRecord() {
	if pid, ok, err := c.pids.Read(); err == nil && ok && c.pids.IsStale(pid) {
		c.logger.Warn("clearing stale pid record", "pid", pid)
		_ = c.pids.Clear()
	}
}

// prepareEnv composes the child environment. A missing env file or
// credential only reduces optional service features; neither is fatal.
func (c *Controller) prepareEnv() []string {
	e := env.FromOS()
	if path := c.cfg.Service.EnvFile; path != "" {
		loaded, err := e.ApplyFile(path)
		if err != nil {
			c.logger.Warn("env file unreadable, continuing without it", "path", path, "error", err)
		} else if !loaded {
			c.logger.Info("no env file present", "path", path)
		}
	}
	if key := c.cfg.Service.CredentialKey; key != "" && !e.Has(key) {
		c.logger.Warn("credential not set, service will run with degraded features", "key", key)
	}
	return e.Environ()
}

func (c *Controller) verifyArtifacts(ctx context.Context) error {
	if ep := c.cfg.Service.EntryPoint; ep != "" {
		if _, err := os.Stat(ep); err != nil {
			return fmt.Errorf("entry point %s: %w", ep, datastore.ErrMissingArtifact)
		}
	}
	boot := &datastore.Bootstrap{
		StorePath:   c.cfg.Service.DataStore,
		InitCommand: c.cfg.Service.InitCommand,
		WorkDir:     c.cfg.Service.WorkDir,
		Logger:      c.logger,
	}
	return boot.Ensure(ctx)
}

// spawnService launches the child in a new session with its output
// appended to the service log, so it survives supervisor exit.
func (c *Controller) spawnService(environ []string) (*os.Process, error) {
	cmd := spawn.BuildCommand(c.cfg.Service.Command)
	if wd := c.cfg.Service.WorkDir; wd != "" {
		cmd.Dir = wd
	}
	if len(environ) > 0 {
		cmd.Env = environ
	}
	logF, err := logger.OpenServiceLog(c.cfg.Paths.ServiceLog)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		_ = logF.Close()
		return nil, err
	}
	_ = logF.Close() // the child holds its own descriptor now
	return cmd.Process, nil
}

// confirmLiveness holds the starting state for the configured window and
// verifies the child did not exit. The service log is the diagnostic
// artifact on failure.
func (c *Controller) confirmLiveness(pid int) error {
	deadline := time.Now().Add(c.cfg.Timing.StartDuration)
	for time.Now().Before(deadline) {
		if processGone(pid) {
			return fmt.Errorf("pid %d exited within %s, see %s: %w",
				pid, c.cfg.Timing.StartDuration, c.cfg.Paths.ServiceLog, ErrStartupFailed)
		}
		c.sleep(livenessPoll)
	}
	return nil
}

// stopByPattern is the fallback when no PID record exists: terminate
// whatever matches the primary entry-point pattern, best effort.
func (c *Controller) stopByPattern() int {
	pat := c.cfg.Service.PrimaryPattern()
	pids, err := c.matcher.FindByCommandPattern(pat)
	if err != nil {
		c.logger.Warn("pattern scan failed", "pattern", pat, "error", err)
		return 0
	}
	if len(pids) == 0 {
		return 0
	}
	c.terminate(pids)
	return len(pids)
}

// terminate TERMs every pid, waits out the grace period, and KILLs survivors.
func (c *Controller) terminate(pids []int) {
	for _, pid := range pids {
		c.signal(pid, syscall.SIGTERM)
	}
	deadline := time.Now().Add(c.cfg.Timing.StopGrace)
	remaining := pids
	for time.Now().Before(deadline) {
		remaining = stillRunning(remaining)
		if len(remaining) == 0 {
			return
		}
		c.sleep(livenessPoll)
	}
	for _, pid := range stillRunning(remaining) {
		c.logger.Warn("escalating to SIGKILL", "pid", pid)
		c.signal(pid, syscall.SIGKILL)
	}
}

func (c *Controller) waitGone(pid int, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if processGone(pid) {
			return true
		}
		c.sleep(livenessPoll)
	}
	return processGone(pid)
}

// signal sends sig to pid; a process that already exited is success.
func (c *Controller) signal(pid int, sig syscall.Signal) {
	if err := c.kill(pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		c.logger.Warn("signal failed", "pid", pid, "signal", sig.String(), "error", err)
	}
}

func (c *Controller) record(ctx context.Context, event string, pid int, detail string) {
	if c.journal == nil {
		return
	}
	rec := journal.Record{At: time.Now(), Event: event, PID: pid, Detail: detail}
	if err := c.journal.Append(ctx, rec); err != nil {
		c.logger.Warn("journal append failed", "event", event, "error", err)
	}
}

func stillRunning(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if !processGone(pid) {
			out = append(out, pid)
		}
	}
	return out
}
