package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndListInvocations(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, kind := range []string{"patch", "isolate", "status_check"} {
		err := store.RecordInvocation(InvocationRecord{
			RunID:     string(rune('a' + i)),
			Kind:      kind,
			Status:    "COMPLETED",
			StartTime: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	records, err := store.ListInvocations(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.Equal(t, "status_check", records[0].Kind)
	assert.Equal(t, "isolate", records[1].Kind)
	assert.Equal(t, "patch", records[2].Kind)
}

func TestStore_ListInvocationsHonorsLimit(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordInvocation(InvocationRecord{
			RunID:     string(rune('a' + i)),
			Kind:      "patch",
			Status:    "FAILED",
			StartTime: base.Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := store.ListInvocations(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStore_Acknowledgments(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ack := Acknowledgment{
		Timestamp: time.Now().UTC(),
		CVE:       "CVE-2025-55182",
		Note:      "confirmed by on-call",
	}
	require.NoError(t, store.RecordAck(ack))

	acks, err := store.ListAcks(10)
	require.NoError(t, err)
	require.Len(t, acks, 1)
	assert.Equal(t, "CVE-2025-55182", acks[0].CVE)
	assert.Equal(t, "confirmed by on-call", acks[0].Note)
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.RecordInvocation(InvocationRecord{
		RunID:     "r1",
		Kind:      "isolate",
		Status:    "COMPLETED",
		StartTime: time.Now().UTC(),
	}))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.ListInvocations(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
