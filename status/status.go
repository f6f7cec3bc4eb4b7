// Package status persists the per-action-kind state token that the external
// dispatcher polls. One file per action kind, overwritten on every
// transition; only the latest value is queryable.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quellsec/quell/types"
)

// Store reads and writes status tokens under a base directory. Tests inject
// a temporary directory instead of the shared well-known location.
type Store struct {
	dir string
}

// NewStore creates a status store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create status dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(kind types.ActionKind) string {
	return filepath.Join(s.dir, fmt.Sprintf("quell-status-%s", kind))
}

// Set overwrites the token for kind. The write goes through a temp file and
// rename so the dispatcher never observes a torn token.
func (s *Store) Set(kind types.ActionKind, st types.ActionStatus) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".status-*")
	if err != nil {
		return fmt.Errorf("failed to create status temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(string(st) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write status token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close status temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(kind)); err != nil {
		return fmt.Errorf("failed to publish status token: %w", err)
	}
	return nil
}

// Get returns the latest token for kind. A missing file means the action
// never ran and yields NotStarted, not an error.
func (s *Store) Get(kind types.ActionKind) (types.ActionStatus, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path(kind))
	if os.IsNotExist(err) {
		return types.StatusNotStarted, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status token: %w", err)
	}
	return types.ParseActionStatus(strings.TrimSpace(string(data)))
}

// Path exposes the token location for kind so reports can reference it.
func (s *Store) Path(kind types.ActionKind) string {
	return s.path(kind)
}
