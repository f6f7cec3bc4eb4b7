package journal

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_AppendAndRead(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, j.Append(EntryStarted, "run-1", "isolate", "CVE-2025-55182", nil))
	require.NoError(t, j.Append(EntryStep, "run-1", "isolate", "CVE-2025-55182", map[string]string{"step": "firewall-snapshot"}))
	require.NoError(t, j.AppendError(EntryFailed, "run-1", "isolate", "CVE-2025-55182", nil, io.ErrUnexpectedEOF))
	require.NoError(t, j.Close())

	files, err := filepath.Glob(filepath.Join(dir, "quell-*.journal"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	reader, err := NewReader(files[0])
	require.NoError(t, err)
	defer reader.Close()

	expected := []EntryType{EntryStarted, EntryStep, EntryFailed}
	for i, want := range expected {
		entry, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, want, entry.Type, "entry %d", i)
		assert.Equal(t, int64(i+1), entry.Sequence)
		assert.Equal(t, "run-1", entry.RunID)
		assert.Equal(t, "CVE-2025-55182", entry.CVE)
	}

	entry, err := reader.Next()
	assert.Nil(t, entry)
	assert.Equal(t, io.EOF, err)
}

func TestJournal_ErrorEntryCarriesMessage(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.AppendError(EntryFailed, "run-2", "patch", "", nil, io.ErrClosedPipe))
	require.NoError(t, j.Close())

	var seen []*Entry
	err = Replay(dir, time.Time{}, func(e *Entry) error {
		seen = append(seen, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, io.ErrClosedPipe.Error(), seen[0].Error)
}

func TestReplay_FiltersBySince(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(EntryStarted, "run-3", "status_check", "", nil))
	require.NoError(t, j.Close())

	count := 0
	err = Replay(dir, time.Now().Add(time.Hour), func(e *Entry) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}
