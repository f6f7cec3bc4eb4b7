package diag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/config"
	"github.com/quellsec/quell/status"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

func writeProcFixture(t *testing.T, load string, memTotalKB, memAvailKB string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uptime"), []byte("3600.50 7200.00\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loadavg"), []byte(load+" 1/234 5678\n"), 0o644))
	meminfo := "MemTotal:       " + memTotalKB + " kB\nMemFree:         100000 kB\nMemAvailable:   " + memAvailKB + " kB\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meminfo"), []byte(meminfo), 0o644))
	return dir
}

func newTestCollector(t *testing.T, fake *capability.Fake, procRoot string) *Collector {
	t.Helper()
	cfg := config.Default()
	cfg.CriticalServices = []string{"sshd"}
	logger := telemetry.NewLogger(t.TempDir(), "status_check", "run-1", "")
	t.Cleanup(logger.Close)
	store, err := status.NewStore(t.TempDir())
	require.NoError(t, err)

	c := NewCollector(fake, logger, store, cfg)
	c.ProcRoot = procRoot
	return c
}

// sectionTitles extracts "=== Title ===" headers in order.
func sectionTitles(rendered string) []string {
	var titles []string
	for _, line := range strings.Split(rendered, "\n") {
		if strings.HasPrefix(line, "=== ") && strings.HasSuffix(line, " ===") {
			titles = append(titles, strings.TrimSuffix(strings.TrimPrefix(line, "=== "), " ==="))
		}
	}
	return titles
}

var wantSections = []string{
	"System Information",
	"Memory Usage",
	"Disk Usage",
	"Service Status",
	"Network",
	"Top Processes",
	"Security Indicators",
	"Available Updates",
	"Prior Action Status",
	"Recommendations",
}

func TestCollect_SectionOrderFixed(t *testing.T) {
	fake := capability.NewFake()
	proc := writeProcFixture(t, "0.50 0.40 0.30", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Equal(t, wantSections, sectionTitles(rendered))
}

func TestCollect_SectionOrderSurvivesMissingTools(t *testing.T) {
	fake := capability.NewFake()
	fake.FailUnmatched = true
	for _, tool := range []string{"df", "ip", "ifconfig", "ss", "netstat", "ps", "lastb", "iptables", "apt-get", "dnf", "yum"} {
		fake.MarkMissing(tool)
	}
	proc := t.TempDir() // empty proc tree

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Equal(t, wantSections, sectionTitles(rendered))
	assert.Contains(t, rendered, "not available")
}

func TestCollect_HighLoadRecommendation(t *testing.T) {
	fake := capability.NewFake()
	proc := writeProcFixture(t, "3.10 2.80 2.50", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Contains(t, rendered, "HIGH LOAD")
	assert.NotContains(t, rendered, "HIGH MEMORY")
}

func TestCollect_HighMemoryRecommendation(t *testing.T) {
	fake := capability.NewFake()
	// 8 GB total, 400 MB available -> 95% used
	proc := writeProcFixture(t, "0.10 0.10 0.10", "8000000", "400000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Contains(t, rendered, "HIGH MEMORY")
}

func TestCollect_HighDiskRecommendation(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("df -h", strings.Join([]string{
		"Filesystem      Size  Used Avail Use% Mounted on",
		"/dev/sda1        50G   47G  1.5G  97% /",
		"tmpfs           3.9G     0  3.9G   0% /dev/shm",
	}, "\n")+"\n", nil)
	proc := writeProcFixture(t, "0.10 0.10 0.10", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Contains(t, rendered, "HIGH DISK USAGE")
	assert.Contains(t, rendered, "97%")
}

func TestCollect_NoIssues(t *testing.T) {
	fake := capability.NewFake()
	proc := writeProcFixture(t, "0.10 0.10 0.10", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Contains(t, rendered, "No issues detected")
}

func TestCollect_PriorStatusesReported(t *testing.T) {
	fake := capability.NewFake()
	proc := writeProcFixture(t, "0.10 0.10 0.10", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	require.NoError(t, c.store.Set(types.ActionPatch, types.StatusCompleted))

	rendered := c.Collect(context.Background()).Render()
	assert.Contains(t, rendered, "patch: COMPLETED")
	assert.Contains(t, rendered, "isolate: NOT_STARTED")
}

func TestCollect_SuspiciousProcessDetected(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("ps -eo comm=", "systemd\nsshd\nxmrig\n", nil)
	proc := writeProcFixture(t, "0.10 0.10 0.10", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Contains(t, rendered, "Suspicious processes: xmrig")
}

func TestCollect_UpdateCountApt(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("apt-get -s -q upgrade", "Inst libssl3 [3.0.2] (3.0.13 Ubuntu)\nInst openssl [3.0.2] (3.0.13 Ubuntu)\nConf libssl3\n", nil)
	proc := writeProcFixture(t, "0.10 0.10 0.10", "8000000", "6000000")

	c := newTestCollector(t, fake, proc)
	rendered := c.Collect(context.Background()).Render()

	assert.Contains(t, rendered, "2 packages upgradable (apt)")
}

func TestProcReader_MalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uptime"), []byte("garbage\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meminfo"), []byte("nothing useful\n"), 0o644))

	p := procReader{root: dir}
	_, err := p.Uptime()
	assert.Error(t, err)
	_, err = p.MemInfo()
	assert.Error(t, err)
	_, _, _, err = p.LoadAvg()
	assert.Error(t, err)
}
