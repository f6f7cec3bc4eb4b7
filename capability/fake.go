package capability

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scripted capability for tests. Responses are keyed by the full
// command line; unmatched commands succeed with empty output unless
// FailUnmatched is set.
type Fake struct {
	mu            sync.Mutex
	Responses     map[string]FakeResponse
	Missing       map[string]bool
	FailUnmatched bool
	Calls         []string
}

// FakeResponse is the scripted result of one command line.
type FakeResponse struct {
	Output string
	Err    error
}

// NewFake creates an empty scripted capability.
func NewFake() *Fake {
	return &Fake{
		Responses: make(map[string]FakeResponse),
		Missing:   make(map[string]bool),
	}
}

// Script registers the response for a command line.
func (f *Fake) Script(cmdline, output string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[cmdline] = FakeResponse{Output: output, Err: err}
}

// MarkMissing makes Available return false for a tool.
func (f *Fake) MarkMissing(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Missing[name] = true
}

// Run executes a scripted command.
func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.Output(ctx, name, args...)
	return err
}

// Output executes a scripted command.
func (f *Fake) Output(ctx context.Context, name string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, cmdline)

	if resp, ok := f.Responses[cmdline]; ok {
		return resp.Output, resp.Err
	}
	if f.FailUnmatched {
		return "", fmt.Errorf("unscripted command: %s", cmdline)
	}
	return "", nil
}

// Available honors MarkMissing, defaulting to present.
func (f *Fake) Available(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Missing[name]
}

// CalledWith reports whether any recorded call starts with prefix.
func (f *Fake) CalledWith(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
