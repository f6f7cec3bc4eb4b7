// Package diag produces the read-only system survey behind the status-check
// action. Every section degrades to an explicit "not available" line when
// its underlying tool is missing; collection itself never fails.
package diag

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/config"
	"github.com/quellsec/quell/report"
	"github.com/quellsec/quell/status"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

const notAvailable = "not available"

// Collector gathers the diagnostic survey.
type Collector struct {
	cap    capability.Capability
	logger *telemetry.Logger
	store  *status.Store
	cfg    *config.Config

	// ProcRoot points at the proc filesystem; tests substitute a fixture.
	ProcRoot string
}

// NewCollector creates a diagnostic collector.
func NewCollector(cap capability.Capability, logger *telemetry.Logger, store *status.Store, cfg *config.Config) *Collector {
	return &Collector{cap: cap, logger: logger, store: store, cfg: cfg, ProcRoot: "/proc"}
}

// Collect builds the full survey report. Sections appear in a fixed order
// regardless of which underlying tools exist on the host.
func (c *Collector) Collect(ctx context.Context) *report.Report {
	r := &report.Report{Title: "SYSTEM STATUS REPORT"}
	r.AddField("Generated", time.Now().Format(time.RFC3339))

	proc := procReader{root: c.ProcRoot}

	loads := c.addSystemInfo(r, proc)
	mem := c.addMemory(r, proc)
	diskMax := c.addDisk(ctx, r)
	c.addServices(ctx, r)
	c.addNetwork(ctx, r)
	c.addTopProcesses(ctx, r)
	c.addSecurity(ctx, r)
	c.addUpdates(ctx, r)
	c.addPriorStatuses(r)
	c.addRecommendations(r, loads, diskMax, mem)

	return r
}

// addSystemInfo returns the 1-minute load for the recommendations section.
func (c *Collector) addSystemInfo(r *report.Report, proc procReader) float64 {
	var b strings.Builder

	host, err := os.Hostname()
	if err != nil {
		host = notAvailable
	}
	fmt.Fprintf(&b, "Hostname: %s\n", host)

	if up, err := proc.Uptime(); err != nil {
		fmt.Fprintf(&b, "Uptime: %s\n", notAvailable)
	} else {
		fmt.Fprintf(&b, "Uptime: %s\n", up.Round(time.Second))
	}

	var load1 float64
	if one, five, fifteen, err := proc.LoadAvg(); err != nil {
		fmt.Fprintf(&b, "Load average: %s\n", notAvailable)
	} else {
		load1 = one
		fmt.Fprintf(&b, "Load average: %.2f %.2f %.2f\n", one, five, fifteen)
	}

	fmt.Fprintf(&b, "Kernel: %s\n", kernelRelease())

	r.AddSection("System Information", b.String())
	return load1
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return notAvailable
	}
	return unix.ByteSliceToString(uts.Release[:])
}

// addMemory returns utilization percent for the recommendations section.
func (c *Collector) addMemory(r *report.Report, proc procReader) float64 {
	info, err := proc.MemInfo()
	if err != nil {
		r.AddSection("Memory Usage", notAvailable)
		return 0
	}
	body := fmt.Sprintf("Total: %d MB\nAvailable: %d MB\nUsed: %.1f%%\n",
		info.TotalKB/1024, info.AvailableKB/1024, info.UsedPercent())
	r.AddSection("Memory Usage", body)
	return info.UsedPercent()
}

// addDisk returns the highest filesystem utilization seen.
func (c *Collector) addDisk(ctx context.Context, r *report.Report) int {
	out, err := c.cap.Output(ctx, "df", "-h")
	if err != nil {
		r.AddSection("Disk Usage", notAvailable)
		return 0
	}
	r.AddSection("Disk Usage", out)

	max := 0
	for _, line := range strings.Split(out, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(fields[4], "%"))
		if err != nil {
			continue
		}
		if pct > max {
			max = pct
		}
	}
	return max
}

func (c *Collector) addServices(ctx context.Context, r *report.Report) {
	var b strings.Builder
	for _, name := range c.cfg.CriticalServices {
		active := c.queryState(ctx, "is-active", name)
		enabled := c.queryState(ctx, "is-enabled", name)
		fmt.Fprintf(&b, "%-16s active=%s enabled=%s\n", name, active, enabled)
	}
	r.AddSection("Service Status", b.String())
}

func (c *Collector) queryState(ctx context.Context, verb, name string) string {
	out, err := c.cap.Output(ctx, "systemctl", verb, name)
	state := strings.TrimSpace(out)
	if state == "" {
		if err != nil {
			return "unknown"
		}
		return notAvailable
	}
	return state
}

func (c *Collector) addNetwork(ctx context.Context, r *report.Report) {
	var b strings.Builder

	b.WriteString("Interfaces:\n")
	b.WriteString(c.firstAvailable(ctx,
		cmdline{"ip", "-brief", "addr"},
		cmdline{"ifconfig", "-a"},
	))

	b.WriteString("\nListening sockets:\n")
	b.WriteString(c.firstAvailable(ctx,
		cmdline{"ss", "-tuln"},
		cmdline{"netstat", "-tuln"},
	))

	r.AddSection("Network", b.String())
}

type cmdline []string

// firstAvailable runs the first command whose tool exists and succeeds.
func (c *Collector) firstAvailable(ctx context.Context, candidates ...cmdline) string {
	for _, cand := range candidates {
		if !c.cap.Available(cand[0]) {
			continue
		}
		out, err := c.cap.Output(ctx, cand[0], cand[1:]...)
		if err != nil {
			continue
		}
		return out
	}
	return notAvailable + "\n"
}

func (c *Collector) addTopProcesses(ctx context.Context, r *report.Report) {
	out, err := c.cap.Output(ctx, "ps", "aux", "--sort=-%cpu")
	if err != nil {
		r.AddSection("Top Processes", notAvailable)
		return
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 11 {
		lines = lines[:11] // header + top 10
	}
	r.AddSection("Top Processes", strings.Join(lines, "\n"))
}

func (c *Collector) addSecurity(ctx context.Context, r *report.Report) {
	var b strings.Builder

	fmt.Fprintf(&b, "Recent failed logins: %s\n", c.failedLogins(ctx))
	fmt.Fprintf(&b, "Firewall rules loaded: %s\n", c.firewallRules(ctx))
	fmt.Fprintf(&b, "Suspicious processes: %s\n", c.suspiciousProcesses(ctx))

	r.AddSection("Security Indicators", b.String())
}

func (c *Collector) failedLogins(ctx context.Context) string {
	if !c.cap.Available("lastb") {
		return notAvailable
	}
	out, err := c.cap.Output(ctx, "lastb", "-n", "50")
	if err != nil {
		return notAvailable
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "btmp begins") {
			continue
		}
		count++
	}
	return strconv.Itoa(count)
}

func (c *Collector) firewallRules(ctx context.Context) string {
	if !c.cap.Available("iptables") {
		return notAvailable
	}
	out, err := c.cap.Output(ctx, "iptables", "-S")
	if err != nil {
		return notAvailable
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "-") {
			count++
		}
	}
	return strconv.Itoa(count)
}

func (c *Collector) suspiciousProcesses(ctx context.Context) string {
	out, err := c.cap.Output(ctx, "ps", "-eo", "comm=")
	if err != nil {
		return notAvailable
	}

	running := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		running[strings.TrimSpace(line)] = true
	}

	var found []string
	for _, name := range c.cfg.SuspiciousProcesses {
		if running[name] {
			found = append(found, name)
		}
	}
	if len(found) == 0 {
		return "none"
	}
	return strings.Join(found, ", ")
}

func (c *Collector) addUpdates(ctx context.Context, r *report.Report) {
	switch {
	case c.cap.Available("apt-get"):
		out, err := c.cap.Output(ctx, "apt-get", "-s", "-q", "upgrade")
		if err != nil {
			r.AddSection("Available Updates", notAvailable)
			return
		}
		count := 0
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, "Inst ") {
				count++
			}
		}
		r.AddSection("Available Updates", fmt.Sprintf("%d packages upgradable (apt)\n", count))

	case c.cap.Available("dnf"), c.cap.Available("yum"):
		tool := "dnf"
		if !c.cap.Available("dnf") {
			tool = "yum"
		}
		// check-update exits non-zero when updates exist; the output still counts.
		out, _ := c.cap.Output(ctx, tool, "-q", "check-update")
		count := 0
		for _, line := range strings.Split(out, "\n") {
			if len(strings.Fields(line)) >= 3 {
				count++
			}
		}
		r.AddSection("Available Updates", fmt.Sprintf("%d packages upgradable (%s)\n", count, tool))

	default:
		r.AddSection("Available Updates", notAvailable)
	}
}

func (c *Collector) addPriorStatuses(r *report.Report) {
	var b strings.Builder
	for _, kind := range []types.ActionKind{types.ActionPatch, types.ActionIsolate} {
		st, err := c.store.Get(kind)
		if err != nil {
			fmt.Fprintf(&b, "%s: unreadable (%v)\n", kind, err)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", kind, st)
	}
	r.AddSection("Prior Action Status", b.String())
}

func (c *Collector) addRecommendations(r *report.Report, load1 float64, diskMax int, memPct float64) {
	var recs []string

	if load1 > c.cfg.Thresholds.LoadHigh {
		recs = append(recs, fmt.Sprintf("HIGH LOAD: 1-minute load %.2f exceeds %.1f; investigate runaway processes", load1, c.cfg.Thresholds.LoadHigh))
	}
	if diskMax >= c.cfg.Thresholds.DiskPercent {
		recs = append(recs, fmt.Sprintf("HIGH DISK USAGE: a filesystem is at %d%%; free space before it fills", diskMax))
	}
	if memPct > float64(c.cfg.Thresholds.MemPercent) {
		recs = append(recs, fmt.Sprintf("HIGH MEMORY: utilization %.1f%% exceeds %d%%; check for leaks", memPct, c.cfg.Thresholds.MemPercent))
	}
	if len(recs) == 0 {
		recs = append(recs, "No issues detected")
	}

	r.AddSection("Recommendations", strings.Join(recs, "\n"))
}
