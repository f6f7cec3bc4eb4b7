package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "patch")
	require.NoError(t, err)
	require.NoError(t, l.Release())

	// Reacquirable after release
	l2, err := Acquire(dir, "patch")
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestAcquire_HeldLockFailsFast(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "isolate")
	require.NoError(t, err)
	defer l.Release()

	// flock state lives on the open file description, so a second acquire
	// sees the held lock even within one process.
	_, err = Acquire(dir, "isolate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestAcquire_IndependentKinds(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir, "patch")
	require.NoError(t, err)
	defer l1.Release()

	l2, err := Acquire(dir, "isolate")
	require.NoError(t, err)
	assert.NoError(t, l2.Release())
}

func TestRelease_Idempotent(t *testing.T) {
	l, err := Acquire(t.TempDir(), "shutdown")
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.NoError(t, l.Release())
}
