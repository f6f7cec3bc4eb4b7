package types

import (
	"fmt"
	"time"
)

// ActionKind identifies one of the four top-level defensive actions.
type ActionKind string

const (
	ActionPatch       ActionKind = "patch"
	ActionIsolate     ActionKind = "isolate"
	ActionShutdown    ActionKind = "shutdown"
	ActionStatusCheck ActionKind = "status_check"
)

// AllActionKinds lists every known action kind, in dispatch order.
var AllActionKinds = []ActionKind{ActionPatch, ActionIsolate, ActionShutdown, ActionStatusCheck}

// Validate ensures the kind is one of the known actions.
func (k ActionKind) Validate() error {
	switch k {
	case ActionPatch, ActionIsolate, ActionShutdown, ActionStatusCheck:
		return nil
	}
	return fmt.Errorf("unknown action kind %q", string(k))
}

// ParseActionKind converts a string to an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// ActionStatus is the persisted state token of an action kind.
// Only the latest value per kind is queryable; NotStarted is represented
// by the absence of a token, never written to disk.
type ActionStatus string

const (
	StatusNotStarted ActionStatus = "NOT_STARTED"
	StatusInProgress ActionStatus = "IN_PROGRESS"
	StatusCompleted  ActionStatus = "COMPLETED"
	StatusFailed     ActionStatus = "FAILED"
)

// ParseActionStatus converts a persisted token back to an ActionStatus.
func ParseActionStatus(s string) (ActionStatus, error) {
	switch ActionStatus(s) {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return ActionStatus(s), nil
	}
	return "", fmt.Errorf("unknown status token %q", s)
}

// Terminal reports whether the status is an end state.
func (s ActionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepOutcome classifies how a single orchestration step ended.
type StepOutcome string

const (
	OutcomeSkipped   StepOutcome = "skipped"
	OutcomeSucceeded StepOutcome = "succeeded"
	OutcomeWarned    StepOutcome = "warned"
	OutcomeFatal     StepOutcome = "fatal"
)

// StepResult records one step of an action run.
type StepResult struct {
	Name     string        `json:"name"`
	Outcome  StepOutcome   `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ActionResult aggregates the ordered step results of a single run.
type ActionResult struct {
	RunID          string       `json:"run_id"`
	Kind           ActionKind   `json:"kind"`
	CVE            string       `json:"cve,omitempty"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	Steps          []StepResult `json:"steps"`
	SucceededCount int          `json:"succeeded_count"`
	WarnedCount    int          `json:"warned_count"`
	SkippedCount   int          `json:"skipped_count"`
	FatalStep      string       `json:"fatal_step,omitempty"`
	ReportPath     string       `json:"report_path,omitempty"`
}

// Record appends a step result and updates the aggregate counts.
func (r *ActionResult) Record(step StepResult) {
	r.Steps = append(r.Steps, step)
	switch step.Outcome {
	case OutcomeSucceeded:
		r.SucceededCount++
	case OutcomeWarned:
		r.WarnedCount++
	case OutcomeSkipped:
		r.SkippedCount++
	case OutcomeFatal:
		r.FatalStep = step.Name
	}
}

// Failed reports whether any step ended fatally.
func (r *ActionResult) Failed() bool {
	return r.FatalStep != ""
}

// Status maps the aggregate result onto the persisted state machine.
func (r *ActionResult) Status() ActionStatus {
	if r.Failed() {
		return StatusFailed
	}
	return StatusCompleted
}
