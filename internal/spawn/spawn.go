// Package spawn builds exec.Cmd values from operator-provided command strings.
package spawn

import (
	"os/exec"
	"strings"
)

// BuildCommand constructs an *exec.Cmd for the given command string.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func BuildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	// If the command already explicitly uses a shell, honor it without adding another layer.
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// Always use absolute shell path to avoid PATH dependency when Env is overridden.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	// Fallback: when metacharacters are present, use /bin/sh -c
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204 -- intentional execution of the configured service command
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at
// the beginning of cmdStr. It returns (afterCArg, true) when matched, preserving
// the substring after "-c " verbatim to avoid breaking quoting.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			// Strip the wrapping quotes only when the closing quote ends the
			// string; a quote that terminates mid-string means further tokens
			// follow the script argument, and the remainder stays verbatim.
			if n := len(after); n >= 2 && (after[0] == '\'' || after[0] == '"') {
				if i := strings.IndexByte(after[1:], after[0]); i >= 0 && i+1 == n-1 {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
