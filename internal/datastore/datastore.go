// Package datastore verifies the service's persisted analytical store and
// bootstraps it through the external initializer when absent.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/localpulse/pulsectl/internal/spawn"
)

// ErrMissingArtifact means a required launch artifact (entry point or data
// store) is absent and could not be created. Fatal to start.
var ErrMissingArtifact = errors.New("missing launch artifact")

// Bootstrap knows where the store lives and how to create it.
type Bootstrap struct {
	StorePath   string // path to the persisted store file
	InitCommand string // external initializer, empty when unavailable
	WorkDir     string
	Logger      *slog.Logger
}

// Ensure succeeds when the store exists, running the initializer once when
// it does not. The initializer's output goes to the supervisor's streams so
// a failed bootstrap is diagnosable.
func (b *Bootstrap) Ensure(ctx context.Context) error {
	if b.StorePath == "" {
		return nil
	}
	if exists(b.StorePath) {
		return nil
	}
	if strings.TrimSpace(b.InitCommand) == "" {
		return fmt.Errorf("data store %s absent and no initializer configured: %w", b.StorePath, ErrMissingArtifact)
	}

	b.Logger.Warn("data store absent, running initializer", "store", b.StorePath, "command", b.InitCommand)
	cmd := spawn.BuildCommand(b.InitCommand)
	if b.WorkDir != "" {
		cmd.Dir = b.WorkDir
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := runWithContext(ctx, cmd); err != nil {
		return fmt.Errorf("data store initializer failed: %v: %w", err, ErrMissingArtifact)
	}
	if !exists(b.StorePath) {
		return fmt.Errorf("initializer completed but data store %s still absent: %w", b.StorePath, ErrMissingArtifact)
	}
	b.Logger.Info("data store initialized", "store", b.StorePath)
	return nil
}

func runWithContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
