// Package firewall applies host isolation rules with a snapshot-first
// safety contract: no restrictive rule is ever applied without a non-empty
// ruleset backup on disk, because that backup is the only recovery path.
package firewall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

// Guard snapshots and mutates the iptables ruleset.
type Guard struct {
	cap            capability.Capability
	logger         *telemetry.Logger
	dir            string
	managementPort int
}

// IsolationResult describes a completed (or attempted) isolation.
type IsolationResult struct {
	SnapshotPath        string             `json:"snapshot_path"`
	Steps               []types.StepResult `json:"steps"`
	RestoreInstructions string             `json:"restore_instructions"`
}

// NewGuard creates a firewall guard writing snapshots under dir.
func NewGuard(cap capability.Capability, logger *telemetry.Logger, dir string, managementPort int) *Guard {
	return &Guard{cap: cap, logger: logger, dir: dir, managementPort: managementPort}
}

// rule is one ordered isolation rule. Allow rules precede the default-deny
// because iptables evaluation is first-match: an early deny would shadow
// every allow after it.
type rule struct {
	name  string
	args  []string
	fatal bool
}

func (g *Guard) rules() []rule {
	return []rule{
		{name: "allow-loopback", args: []string{"-A", "INPUT", "-i", "lo", "-j", "ACCEPT"}},
		{name: "allow-established", args: []string{"-A", "INPUT", "-m", "state", "--state", "ESTABLISHED,RELATED", "-j", "ACCEPT"}},
		{name: "allow-management", args: []string{"-A", "INPUT", "-p", "tcp", "--dport", fmt.Sprintf("%d", g.managementPort), "-j", "ACCEPT"}},
		// Default-deny must stay last in this list and last on the chain.
		{name: "default-deny", args: []string{"-A", "INPUT", "-j", "DROP"}, fatal: true},
	}
}

// Isolate snapshots the current ruleset, then applies the isolation rules in
// order. Snapshot failure and default-deny failure are fatal; the other
// rules degrade to warnings. The returned result is valid even on error so
// callers can report partial progress.
func (g *Guard) Isolate(ctx context.Context) (*IsolationResult, error) {
	result := &IsolationResult{}

	snapshotPath, err := g.Snapshot(ctx)
	if err != nil {
		result.Steps = append(result.Steps, types.StepResult{
			Name:    "firewall-snapshot",
			Outcome: types.OutcomeFatal,
			Error:   err.Error(),
		})
		g.logger.LogStepError("firewall-snapshot", true, err)
		return result, fmt.Errorf("firewall snapshot failed, refusing to isolate: %w", err)
	}
	result.SnapshotPath = snapshotPath
	result.Steps = append(result.Steps, types.StepResult{
		Name:    "firewall-snapshot",
		Outcome: types.OutcomeSucceeded,
		Detail:  snapshotPath,
	})
	g.logger.LogStep("firewall-snapshot", string(types.OutcomeSucceeded), snapshotPath)

	for _, r := range g.rules() {
		start := time.Now()
		err := g.cap.Run(ctx, "iptables", r.args...)
		step := types.StepResult{Name: r.name, Duration: time.Since(start)}

		switch {
		case err == nil:
			step.Outcome = types.OutcomeSucceeded
		case r.fatal:
			step.Outcome = types.OutcomeFatal
			step.Error = err.Error()
			result.Steps = append(result.Steps, step)
			g.logger.LogStepError(r.name, true, err)
			return result, fmt.Errorf("default-deny rule failed, isolation did not take effect: %w", err)
		default:
			step.Outcome = types.OutcomeWarned
			step.Error = err.Error()
		}

		result.Steps = append(result.Steps, step)
		if err != nil {
			g.logger.LogStepError(r.name, false, err)
		} else {
			g.logger.LogStep(r.name, string(types.OutcomeSucceeded), "")
		}
	}

	result.RestoreInstructions = RestoreInstructions(snapshotPath)
	return result, nil
}

// Snapshot captures the current ruleset to a timestamped backup file and
// fails if the capture is empty: an empty backup cannot restore anything.
func (g *Guard) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(g.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	out, err := g.cap.Output(ctx, "iptables-save")
	if err != nil {
		return "", fmt.Errorf("iptables-save failed: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("iptables-save produced empty output")
	}

	path := filepath.Join(g.dir, fmt.Sprintf("fw-snapshot-%s.rules", time.Now().Format("20060102-150405.000000000")))
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// RuleCount returns the number of rules currently loaded, for diagnostics.
func (g *Guard) RuleCount(ctx context.Context) (int, error) {
	out, err := g.cap.Output(ctx, "iptables", "-S")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "-") {
			count++
		}
	}
	return count, nil
}

// RestoreInstructions renders the documented, manual recovery procedure.
// The procedure is deliberately not automated.
func RestoreInstructions(snapshotPath string) string {
	var b strings.Builder
	b.WriteString("To restore firewall rules and service availability:\n")
	fmt.Fprintf(&b, "  1. iptables-restore < %s\n", snapshotPath)
	b.WriteString("  2. systemctl enable <service> && systemctl start <service> for each service stopped during isolation\n")
	b.WriteString("  3. Verify connectivity before closing the incident\n")
	return b.String()
}
