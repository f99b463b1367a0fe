// Package execx runs host commands (systemctl, apt-get, ufw, the mesh CLI)
// behind an interface so executors can be tested with recorded fakes.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a host command and returns its combined output.
type Runner interface {
	// Run executes name with args and returns stdout. A non-zero exit is
	// returned as an error carrying the command line and stderr tail.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunEnv is Run with extra KEY=VALUE environment entries appended to
	// the inherited environment.
	RunEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// Host is the real Runner backed by os/exec.
type Host struct{}

func (Host) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return Host{}.RunEnv(ctx, nil, name, args...)
}

func (Host) RunEnv(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &Error{
			Cmdline: name + " " + strings.Join(args, " "),
			Stderr:  tail(stderr.String()),
			Err:     err,
		}
	}
	return stdout.Bytes(), nil
}

// Error is a failed command invocation.
type Error struct {
	Cmdline string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Cmdline, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Cmdline, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

const stderrTailLines = 4

// tail keeps the last few stderr lines — apt and ufw print the useful
// diagnostic at the end of long output.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "; ")
}
