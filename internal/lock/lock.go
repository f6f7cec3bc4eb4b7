// Package lock provides per-action-kind advisory file locks. Two concurrent
// invocations of the same action kind would race on the status token and
// firewall state; the second one fails fast instead.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock is a held advisory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes a non-blocking exclusive flock for the given action kind.
// Returns an error immediately if another invocation holds it.
func Acquire(dir, kind string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("quell-%s.lock", kind))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640) // #nosec G304 -- path built from config
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("action %s is already running", kind)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	return &Lock{file: file, path: path}, nil
}

// Release drops the lock. The lock file itself stays behind; flock state
// dies with the descriptor.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return closeErr
}
