// Package runner composes the action components into the four top-level
// defensive actions and aggregates their step outcomes into a single
// queryable result.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/config"
	"github.com/quellsec/quell/history"
	"github.com/quellsec/quell/internal/lock"
	"github.com/quellsec/quell/journal"
	"github.com/quellsec/quell/metrics"
	"github.com/quellsec/quell/report"
	"github.com/quellsec/quell/shutdown"
	"github.com/quellsec/quell/status"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

// Runner executes one defensive action to completion.
type Runner struct {
	Cfg     *config.Config
	Cap     capability.Capability
	Logger  *telemetry.Logger
	Store   *status.Store
	Journal *journal.Journal
	History *history.Store
	Metrics *metrics.Metrics
	Reports *report.Writer
	Clock   shutdown.Clock

	RunID string
	CVE   string
}

// New wires a runner with real dependencies for one invocation.
func New(cfg *config.Config, kind types.ActionKind, cve string) (*Runner, error) {
	runID := uuid.NewString()

	store, err := status.NewStore(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	jnl, err := journal.Open(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(cfg.BaseDir)
	if err != nil {
		jnl.Close()
		return nil, err
	}
	reports, err := report.NewWriter(cfg.BaseDir)
	if err != nil {
		jnl.Close()
		hist.Close()
		return nil, err
	}

	return &Runner{
		Cfg:     cfg,
		Cap:     capability.NewExec(cfg.CommandTimeout),
		Logger:  telemetry.NewLogger(cfg.LogDir, string(kind), runID, cve),
		Store:   store,
		Journal: jnl,
		History: hist,
		Metrics: metrics.New(),
		Reports: reports,
		Clock:   shutdown.RealClock{},
		RunID:   runID,
		CVE:     cve,
	}, nil
}

// Close releases the runner's resources.
func (r *Runner) Close() {
	if r.Journal != nil {
		_ = r.Journal.Close()
	}
	if r.History != nil {
		_ = r.History.Close()
	}
	if r.Logger != nil {
		r.Logger.Close()
	}
}

// Run executes the named action. The returned result is always populated;
// the error is non-nil exactly when a step ended fatally.
func (r *Runner) Run(ctx context.Context, kind types.ActionKind) (*types.ActionResult, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	result := &types.ActionResult{
		RunID:     r.RunID,
		Kind:      kind,
		CVE:       r.CVE,
		StartTime: time.Now(),
	}

	// A held lock means another invocation of this kind owns the status
	// token and system state right now; fail fast without touching either.
	lk, err := lock.Acquire(r.Cfg.BaseDir, string(kind))
	if err != nil {
		result.Record(types.StepResult{Name: "acquire-lock", Outcome: types.OutcomeFatal, Error: err.Error()})
		r.finish(result)
		return result, err
	}
	defer func() { _ = lk.Release() }()

	r.setStatus(kind, types.StatusInProgress)
	r.journalEntry(journal.EntryStarted, kind, nil, nil)
	r.Logger.Info().Msg("action started")

	var runErr error
	var halted bool
	switch kind {
	case types.ActionPatch:
		runErr = r.runPatch(ctx, result)
	case types.ActionIsolate:
		runErr = r.runIsolate(ctx, result)
	case types.ActionShutdown:
		halted, runErr = r.runShutdown(ctx, result)
	case types.ActionStatusCheck:
		runErr = r.runStatusCheck(ctx, result)
	}

	r.finish(result)

	// A successful halt never reaches a terminal token on a real host; the
	// in-progress token is the honest final state.
	if !halted {
		r.setStatus(kind, result.Status())
	}

	if result.Failed() {
		r.journalEntry(journal.EntryFailed, kind, result, runErr)
	} else {
		r.journalEntry(journal.EntryCompleted, kind, result, nil)
	}
	r.recordHistory(result)
	r.observeMetrics(result)

	if runErr != nil {
		r.Logger.Error().Err(runErr).Msg("action failed")
		return result, runErr
	}
	r.Logger.Info().
		Int("succeeded", result.SucceededCount).
		Int("warned", result.WarnedCount).
		Int("skipped", result.SkippedCount).
		Msg("action completed")
	return result, nil
}

func (r *Runner) finish(result *types.ActionResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
}

// setStatus is best-effort: a failing status write is logged but never
// aborts remediation that is already mutating the host.
func (r *Runner) setStatus(kind types.ActionKind, st types.ActionStatus) {
	if err := r.Store.Set(kind, st); err != nil {
		r.Logger.Warn().Err(err).Str("status", string(st)).Msg("failed to persist status token")
	}
}

func (r *Runner) journalEntry(t journal.EntryType, kind types.ActionKind, data interface{}, cause error) {
	var err error
	if cause != nil {
		err = r.Journal.AppendError(t, r.RunID, string(kind), r.CVE, data, cause)
	} else {
		err = r.Journal.Append(t, r.RunID, string(kind), r.CVE, data)
	}
	if err != nil {
		r.Logger.Warn().Err(err).Msg("failed to append journal entry")
	}
}

func (r *Runner) recordHistory(result *types.ActionResult) {
	rec := history.InvocationRecord{
		RunID:      result.RunID,
		Kind:       string(result.Kind),
		CVE:        result.CVE,
		Status:     string(result.Status()),
		StartTime:  result.StartTime,
		Duration:   result.Duration,
		ReportPath: result.ReportPath,
	}
	if err := r.History.RecordInvocation(rec); err != nil {
		r.Logger.Warn().Err(err).Msg("failed to record invocation history")
	}
}

func (r *Runner) observeMetrics(result *types.ActionResult) {
	r.Metrics.ObserveRun(result)
	path := filepath.Join(r.Cfg.BaseDir, "quell.prom")
	if err := r.Metrics.WriteTextfile(path); err != nil {
		r.Logger.Warn().Err(err).Msg("failed to write metrics textfile")
	}
}

// baseReport starts a report with the common key/value header.
func (r *Runner) baseReport(title string, result *types.ActionResult) *report.Report {
	rep := &report.Report{Title: title}
	rep.AddField("Action", string(result.Kind))
	rep.AddField("Run ID", result.RunID)
	if result.CVE != "" {
		rep.AddField("CVE", result.CVE)
	}
	rep.AddField("Started", result.StartTime.Format(time.RFC3339))
	return rep
}

// addStepsSection renders the per-step outcomes into the report.
func addStepsSection(rep *report.Report, steps []types.StepResult) {
	var body string
	for _, s := range steps {
		line := fmt.Sprintf("%-24s %s", s.Name, s.Outcome)
		if s.Detail != "" {
			line += " (" + s.Detail + ")"
		}
		if s.Error != "" {
			line += " error: " + s.Error
		}
		body += line + "\n"
	}
	rep.AddSection("Steps", body)
}

// writeReport persists the run report and records the step.
func (r *Runner) writeReport(result *types.ActionResult, prefix string, rep *report.Report) {
	path, err := r.Reports.Write(prefix, rep)
	step := types.StepResult{Name: "write-report"}
	if err != nil {
		step.Outcome = types.OutcomeWarned
		step.Error = err.Error()
		r.Logger.LogStepError(step.Name, false, err)
	} else {
		step.Outcome = types.OutcomeSucceeded
		step.Detail = path
		result.ReportPath = path
	}
	result.Record(step)
	r.Logger.LogStep(step.Name, string(step.Outcome), step.Detail)
}
