package runner

import (
	"context"

	"github.com/quellsec/quell/firewall"
	"github.com/quellsec/quell/services"
	"github.com/quellsec/quell/types"
)

// runIsolate stops the exposed services then applies the firewall isolation
// ruleset. The firewall guard's fatal contract governs the action: no
// snapshot, no isolation.
func (r *Runner) runIsolate(ctx context.Context, result *types.ActionResult) error {
	controller := services.NewController(r.Cap, r.Logger)
	batch := controller.Apply(ctx, r.Cfg.IsolateServices)
	outcome, detail := services.Summarize(batch)
	result.Record(types.StepResult{Name: "stop-exposed-services", Outcome: outcome, Detail: detail})

	guard := firewall.NewGuard(r.Cap, r.Logger, r.Cfg.BaseDir, r.Cfg.ManagementPort)
	iso, err := guard.Isolate(ctx)
	for _, step := range iso.Steps {
		result.Record(step)
	}

	rep := r.baseReport("ISOLATION REPORT", result)
	if iso.SnapshotPath != "" {
		rep.AddField("Firewall Snapshot", iso.SnapshotPath)
	}
	addStepsSection(rep, result.Steps)
	if iso.RestoreInstructions != "" {
		rep.AddSection("Restore Instructions", iso.RestoreInstructions)
	}
	r.writeReport(result, "isolation-report", rep)

	return err
}
