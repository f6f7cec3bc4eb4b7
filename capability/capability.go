// Package capability abstracts privileged external commands behind an
// injectable interface so the service, firewall, shutdown and diagnostic
// components can run against a fake in tests instead of mutating the host.
package capability

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Capability executes external system tools on behalf of an action.
type Capability interface {
	// Run executes a command, discarding its output.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes a command and returns its combined output.
	Output(ctx context.Context, name string, args ...string) (string, error)
	// Available reports whether the named tool exists on this host.
	Available(name string) bool
}

// Exec is the real capability backed by os/exec. Every command is bounded by
// a timeout so one hung tool cannot wedge a whole action.
type Exec struct {
	Timeout time.Duration
}

// NewExec creates the real capability with the given per-command timeout.
func NewExec(timeout time.Duration) *Exec {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Exec{Timeout: timeout}
}

// Run executes a command, returning any combined output inside the error.
func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	_, err := e.Output(ctx, name, args...)
	return err
}

// Output executes a command and returns its combined stdout+stderr.
func (e *Exec) Output(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- commands come from fixed action sequences
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return string(out), fmt.Errorf("%s timed out after %s", name, e.Timeout)
	}
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return string(out), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, detail)
		}
		return string(out), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Available reports whether the tool is on PATH.
func (e *Exec) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
