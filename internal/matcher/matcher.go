// Package matcher identifies OS processes belonging to the supervised
// service, either by command-line substring or by ownership of a
// listening TCP port. All queries are read-only; a PID returned here may
// exit before the caller acts on it, so consumers must treat a vanished
// process as success.
package matcher

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

type Matcher struct {
	self int32 // excluded from every result so the supervisor never targets itself
}

func New() *Matcher {
	return &Matcher{self: int32(os.Getpid())}
}

// FindByCommandPattern returns PIDs of live processes whose command line
// contains pattern. No match is a normal outcome, not an error.
func (m *Matcher) FindByCommandPattern(pattern string) ([]int, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, errors.New("empty command pattern")
	}
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	var pids []int
	for _, p := range procs {
		if p.Pid == m.self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			// exited mid-scan or not inspectable; skip
			continue
		}
		if strings.Contains(cmdline, pattern) {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}

// FindByPort returns PIDs of processes holding a listening TCP socket on
// port, regardless of whether they match the service identity.
func (m *Matcher) FindByPort(port int) ([]int, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port out of range: %d", port)
	}
	conns, err := gopsnet.Connections("tcp")
	if err != nil {
		return nil, fmt.Errorf("enumerate tcp sockets: %w", err)
	}
	seen := make(map[int]struct{})
	var pids []int
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) {
			continue
		}
		pid := int(c.Pid)
		if pid <= 0 || pid == int(m.self) {
			continue
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		pids = append(pids, pid)
	}
	return pids, nil
}
