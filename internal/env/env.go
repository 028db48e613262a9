// Package env prepares the environment for the supervised service:
// OS environment as the base, optional env-file overrides on top.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

type Env struct {
	vars map[string]string
}

// FromOS captures the current process environment as the base.
func FromOS() *Env {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			vars[k] = kv[i+1:]
		}
	}
	return &Env{vars: vars}
}

// ApplyFile overlays KEY=VALUE entries from a simple env file
// (no export keyword, no quoting; lines starting with # are ignored).
// A missing file is not an error: it returns (false, nil).
func (e *Env) ApplyFile(path string) (bool, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			if k == "" {
				continue
			}
			e.vars[k] = v
		}
	}
	return true, nil
}

// Set overrides a single variable.
func (e *Env) Set(k, v string) {
	if k != "" {
		e.vars[k] = v
	}
}

// Has reports whether key is present with a non-empty value.
func (e *Env) Has(key string) bool {
	return strings.TrimSpace(e.vars[key]) != ""
}

// Environ returns the composed environment in "K=V" form with ${VAR}
// expansion performed against the composed map (simple expansion, no recursion).
func (e *Env) Environ() []string {
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+expand(v, e.vars))
	}
	return out
}

func expand(s string, m map[string]string) string {
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
