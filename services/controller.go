// Package services drives systemd units to desired lifecycle states with
// best-effort, continue-on-failure semantics.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

// Controller applies desired states to an ordered list of services. One
// service failing never aborts the batch; the caller inspects the per-service
// outcomes.
type Controller struct {
	cap    capability.Capability
	logger *telemetry.Logger
}

// NewController creates a service controller.
func NewController(cap capability.Capability, logger *telemetry.Logger) *Controller {
	return &Controller{cap: cap, logger: logger}
}

// Apply drives each descriptor, in order, to its desired state.
// A service already in the target state yields Skipped. A verb failing
// yields Warned and the batch continues. Re-applying is idempotent.
func (c *Controller) Apply(ctx context.Context, descriptors []types.ServiceDescriptor) []types.ServiceResult {
	results := make([]types.ServiceResult, 0, len(descriptors))
	for _, d := range descriptors {
		r := c.applyOne(ctx, d)
		c.logger.LogStep("service:"+d.Name, string(r.Outcome), r.Detail)
		results = append(results, r)
	}
	return results
}

func (c *Controller) applyOne(ctx context.Context, d types.ServiceDescriptor) types.ServiceResult {
	result := types.ServiceResult{Service: d.Name, Desired: d.DesiredState}

	if err := d.Validate(); err != nil {
		result.Outcome = types.OutcomeWarned
		result.Detail = err.Error()
		return result
	}

	switch d.DesiredState {
	case types.StateStopped:
		if !c.isActive(ctx, d.Name) {
			result.Outcome = types.OutcomeSkipped
			result.Detail = "not active"
			return result
		}
		return c.runVerb(ctx, result, "stop", d.Name)

	case types.StateDisabled:
		if !c.isEnabled(ctx, d.Name) {
			result.Outcome = types.OutcomeSkipped
			result.Detail = "not enabled"
			return result
		}
		return c.runVerb(ctx, result, "disable", d.Name)

	case types.StateRestarted:
		if !c.isActive(ctx, d.Name) {
			result.Outcome = types.OutcomeSkipped
			result.Detail = "not active"
			return result
		}
		return c.runVerb(ctx, result, "restart", d.Name)
	}

	result.Outcome = types.OutcomeWarned
	result.Detail = fmt.Sprintf("unknown desired state %q", d.DesiredState)
	return result
}

func (c *Controller) runVerb(ctx context.Context, result types.ServiceResult, verb, name string) types.ServiceResult {
	if err := c.cap.Run(ctx, "systemctl", verb, name); err != nil {
		result.Outcome = types.OutcomeWarned
		result.Detail = err.Error()
		return result
	}
	result.Outcome = types.OutcomeSucceeded
	result.Detail = verb + "ed"
	if verb == "stop" {
		result.Detail = "stopped"
	}
	return result
}

// isActive queries systemctl is-active. Query failure is treated as
// inactive; the later verb would fail anyway and report the real error.
func (c *Controller) isActive(ctx context.Context, name string) bool {
	out, err := c.cap.Output(ctx, "systemctl", "is-active", name)
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "active"
}

func (c *Controller) isEnabled(ctx context.Context, name string) bool {
	out, err := c.cap.Output(ctx, "systemctl", "is-enabled", name)
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "enabled"
}

// Summarize folds a batch into a single step outcome: all skipped →
// Skipped, any warned → Warned, otherwise Succeeded.
func Summarize(results []types.ServiceResult) (types.StepOutcome, string) {
	var succeeded, warned, skipped int
	for _, r := range results {
		switch r.Outcome {
		case types.OutcomeSucceeded:
			succeeded++
		case types.OutcomeWarned:
			warned++
		case types.OutcomeSkipped:
			skipped++
		}
	}
	detail := fmt.Sprintf("%d succeeded, %d warned, %d skipped", succeeded, warned, skipped)
	switch {
	case warned > 0:
		return types.OutcomeWarned, detail
	case succeeded == 0:
		return types.OutcomeSkipped, detail
	default:
		return types.OutcomeSucceeded, detail
	}
}
