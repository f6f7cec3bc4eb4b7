package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/quellsec/quell/services"
	"github.com/quellsec/quell/types"
)

// packageManager describes one supported package manager and its verbs.
type packageManager struct {
	tool    string
	refresh []string
	upgrade []string
}

// Detection order matters: a host with both apt and dnf installed is almost
// always Debian-family with dnf as a leftover.
var packageManagers = []packageManager{
	{tool: "apt-get", refresh: []string{"update"}, upgrade: []string{"-y", "upgrade"}},
	{tool: "dnf", refresh: []string{"-y", "makecache"}, upgrade: []string{"-y", "upgrade"}},
	{tool: "yum", refresh: []string{"-y", "makecache"}, upgrade: []string{"-y", "update"}},
	{tool: "zypper", refresh: []string{"refresh"}, upgrade: []string{"--non-interactive", "update"}},
}

// runPatch applies OS updates and restarts the configured services.
func (r *Runner) runPatch(ctx context.Context, result *types.ActionResult) error {
	pm, err := r.detectPackageManager(result)
	if err != nil {
		return err
	}

	// Index refresh failing is survivable; the upgrade may still apply
	// what is already known.
	r.runStep(ctx, result, "refresh-package-index", false, pm.tool, pm.refresh...)

	if err := r.runStep(ctx, result, "apply-updates", true, pm.tool, pm.upgrade...); err != nil {
		return fmt.Errorf("package upgrade failed: %w", err)
	}

	controller := services.NewController(r.Cap, r.Logger)
	batch := controller.Apply(ctx, r.Cfg.PatchRestartServices)
	outcome, detail := services.Summarize(batch)
	result.Record(types.StepResult{Name: "restart-services", Outcome: outcome, Detail: detail})

	rep := r.baseReport("PATCH REPORT", result)
	rep.AddField("Package Manager", pm.tool)
	addStepsSection(rep, result.Steps)
	r.writeReport(result, "patch-report", rep)

	return nil
}

// detectPackageManager finds the first supported package manager. None
// found is fatal before any update step is attempted.
func (r *Runner) detectPackageManager(result *types.ActionResult) (*packageManager, error) {
	for i := range packageManagers {
		if r.Cap.Available(packageManagers[i].tool) {
			result.Record(types.StepResult{
				Name:    "detect-package-manager",
				Outcome: types.OutcomeSucceeded,
				Detail:  packageManagers[i].tool,
			})
			r.Logger.LogStep("detect-package-manager", string(types.OutcomeSucceeded), packageManagers[i].tool)
			return &packageManagers[i], nil
		}
	}

	err := fmt.Errorf("no supported package manager found")
	result.Record(types.StepResult{
		Name:    "detect-package-manager",
		Outcome: types.OutcomeFatal,
		Error:   err.Error(),
	})
	r.Logger.LogStepError("detect-package-manager", true, err)
	return nil, err
}

// runStep executes one external command as a recorded step. When fatal is
// false a failure degrades to a warning and the action continues.
func (r *Runner) runStep(ctx context.Context, result *types.ActionResult, name string, fatal bool, tool string, args ...string) error {
	start := time.Now()
	err := r.Cap.Run(ctx, tool, args...)
	step := types.StepResult{Name: name, Duration: time.Since(start)}

	switch {
	case err == nil:
		step.Outcome = types.OutcomeSucceeded
		r.Logger.LogStep(name, string(step.Outcome), "")
	case fatal:
		step.Outcome = types.OutcomeFatal
		step.Error = err.Error()
		r.Logger.LogStepError(name, true, err)
	default:
		step.Outcome = types.OutcomeWarned
		step.Error = err.Error()
		r.Logger.LogStepError(name, false, err)
		err = nil
	}

	result.Record(step)
	return err
}
