package report

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_RenderOrder(t *testing.T) {
	r := &Report{Title: "TEST REPORT"}
	r.AddField("Action", "isolate")
	r.AddField("Run ID", "abc")
	r.AddSection("First", "one\n")
	r.AddSection("Second", "two")

	out := r.Render()

	assert.Contains(t, out, "TEST REPORT")
	assert.Contains(t, out, "Action: isolate")
	assert.Less(t, strings.Index(out, "Action:"), strings.Index(out, "Run ID:"))
	assert.Less(t, strings.Index(out, "=== First ==="), strings.Index(out, "=== Second ==="))
}

func TestReport_EmptySectionBody(t *testing.T) {
	r := &Report{Title: "T"}
	r.AddSection("Empty", "")
	assert.Contains(t, r.Render(), "(empty)")
}

func TestWriter_WriteCreatesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	r := &Report{Title: "T"}
	path, err := w.Write("status-report", r)
	require.NoError(t, err)
	assert.Contains(t, path, "status-report-")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "T")
}

func TestWriter_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path, err := w.Write("patch-report", &Report{Title: "first"})
	require.NoError(t, err)

	// A colliding path must error rather than clobber the earlier report
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	assert.Error(t, err)
	if f != nil {
		f.Close()
	}
}

func TestWriter_DistinctRunsDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	p1, err := w.Write("isolation-report", &Report{Title: "a"})
	require.NoError(t, err)
	p2, err := w.Write("isolation-report", &Report{Title: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
}
