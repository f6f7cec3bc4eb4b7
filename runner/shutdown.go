package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/quellsec/quell/services"
	"github.com/quellsec/quell/shutdown"
	"github.com/quellsec/quell/types"
)

// runShutdown drives the emergency shutdown sequence. The bool reports
// whether the halt was actually issued; when it was, the caller must not
// write a terminal status token, because the host is going down.
func (r *Runner) runShutdown(ctx context.Context, result *types.ActionResult) (bool, error) {
	controller := services.NewController(r.Cap, r.Logger)
	seq := shutdown.NewSequencer(r.Cap, r.Logger, controller, r.Clock)

	seq.WriteReport = func() (string, error) {
		rep := r.baseReport("EMERGENCY SHUTDOWN REPORT", result)
		rep.AddField("Countdown", fmt.Sprintf("%d seconds", int(r.Cfg.ShutdownDelay.Seconds())))
		rep.AddSection("Notice", "Emergency shutdown initiated. The host will halt when the countdown elapses.\nCancel by interrupting the quell process before the countdown ends.")
		return r.Reports.Write("shutdown-report", rep)
	}

	seqResult, err := seq.Execute(ctx, r.Cfg.ShutdownDelay, r.Cfg.ShutdownStopServices)
	for _, step := range seqResult.Steps {
		result.Record(step)
	}
	if seqResult.ReportPath != "" {
		result.ReportPath = seqResult.ReportPath
	}
	result.EndTime = time.Now()

	return seqResult.Halted, err
}
