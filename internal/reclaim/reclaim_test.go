package reclaim

import (
	"errors"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"
)

// fakeMatcher returns one snapshot per call.
type fakeMatcher struct {
	snapshots [][]int
	calls     int
}

func (f *fakeMatcher) FindByPort(port int) ([]int, error) {
	if f.calls >= len(f.snapshots) {
		return nil, nil
	}
	pids := f.snapshots[f.calls]
	f.calls++
	return pids, nil
}

type sentSignal struct {
	pid int
	sig syscall.Signal
}

func testReclaimer(m PortMatcher) (*Reclaimer, *[]sentSignal) {
	sent := &[]sentSignal{}
	r := New(m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.kill = func(pid int, sig syscall.Signal) error {
		*sent = append(*sent, sentSignal{pid: pid, sig: sig})
		return nil
	}
	r.sleep = func(time.Duration) {}
	return r, sent
}

func TestEnsureFreePortAlreadyFree(t *testing.T) {
	r, sent := testReclaimer(&fakeMatcher{snapshots: [][]int{nil}})
	if err := r.EnsureFree(8081, time.Second); err != nil {
		t.Fatalf("EnsureFree: %v", err)
	}
	if len(*sent) != 0 {
		t.Fatalf("no signal expected for a free port, got %v", *sent)
	}
}

func TestEnsureFreeTermIsEnough(t *testing.T) {
	m := &fakeMatcher{snapshots: [][]int{{101, 102}, nil}}
	r, sent := testReclaimer(m)
	if err := r.EnsureFree(8081, time.Second); err != nil {
		t.Fatalf("EnsureFree: %v", err)
	}
	want := []sentSignal{{101, syscall.SIGTERM}, {102, syscall.SIGTERM}}
	if len(*sent) != len(want) {
		t.Fatalf("signals = %v, want %v", *sent, want)
	}
	for i, s := range *sent {
		if s != want[i] {
			t.Fatalf("signals = %v, want %v", *sent, want)
		}
	}
}

func TestEnsureFreeEscalatesToKill(t *testing.T) {
	m := &fakeMatcher{snapshots: [][]int{{101}, {101}, nil}}
	r, sent := testReclaimer(m)
	if err := r.EnsureFree(8081, time.Second); err != nil {
		t.Fatalf("EnsureFree: %v", err)
	}
	if len(*sent) != 2 {
		t.Fatalf("expected TERM then KILL, got %v", *sent)
	}
	if (*sent)[0].sig != syscall.SIGTERM || (*sent)[1].sig != syscall.SIGKILL {
		t.Fatalf("expected TERM then KILL, got %v", *sent)
	}
}

func TestEnsureFreeReportsStubbornOwner(t *testing.T) {
	m := &fakeMatcher{snapshots: [][]int{{101}, {101}, {101}}}
	r, _ := testReclaimer(m)
	err := r.EnsureFree(8081, time.Second)
	if !errors.Is(err, ErrPortStillBound) {
		t.Fatalf("expected ErrPortStillBound, got %v", err)
	}
}

func TestEnsureFreeToleratesVanishedProcess(t *testing.T) {
	m := &fakeMatcher{snapshots: [][]int{{101}, nil}}
	r, _ := testReclaimer(m)
	r.kill = func(pid int, sig syscall.Signal) error { return syscall.ESRCH }
	if err := r.EnsureFree(8081, time.Second); err != nil {
		t.Fatalf("ESRCH from a raced exit must not fail the reclaim: %v", err)
	}
}
