package lifecycle

import (
	"os/exec"
	"testing"
)

// spawnSleeper starts a long-lived child and returns its pid. The child is
// killed and reaped at cleanup if a test did not already terminate it.
func spawnSleeper(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleeper: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd.Process.Pid
}

// spawnExited runs a child to completion and returns its now-dead pid.
func spawnExited(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	return cmd.Process.Pid
}
