// Package shutdown sequences the emergency halt: warn users, stop critical
// services, sync disks, write the emergency report, count down, halt. The
// countdown is the only cancellation point in the whole subsystem; a context
// cancellation observed there aborts before the irreversible halt.
package shutdown

import (
	"context"
	"fmt"
	"time"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/services"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

// Clock abstracts time so countdown tests run without real delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock is the production clock.
type RealClock struct{}

// After waits for the duration to elapse.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sequencer drives the emergency shutdown.
type Sequencer struct {
	cap        capability.Capability
	logger     *telemetry.Logger
	controller *services.Controller
	clock      Clock

	// WriteReport persists the emergency report before the countdown.
	// Failure to write it is a warning; the shutdown proceeds.
	WriteReport func() (string, error)
}

// Result aggregates the sequencer's step outcomes.
type Result struct {
	Steps      []types.StepResult `json:"steps"`
	ReportPath string             `json:"report_path,omitempty"`
	Halted     bool               `json:"halted"`
	Cancelled  bool               `json:"cancelled"`
}

// NewSequencer creates an emergency shutdown sequencer.
func NewSequencer(cap capability.Capability, logger *telemetry.Logger, controller *services.Controller, clock Clock) *Sequencer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Sequencer{cap: cap, logger: logger, controller: controller, clock: clock}
}

// Execute runs the shutdown sequence with the given countdown. On success
// the call only returns if the halt command itself returned, which on a real
// host it does not. Cancellation during the countdown returns an error and
// leaves the host running.
func (s *Sequencer) Execute(ctx context.Context, delay time.Duration, stopList []types.ServiceDescriptor) (*Result, error) {
	result := &Result{}

	s.broadcast(ctx, result, delay)
	s.stopServices(ctx, result, stopList)

	if err := s.syncDisks(ctx, result); err != nil {
		return result, err
	}

	s.writeReport(result)

	if err := s.countdown(ctx, result, delay); err != nil {
		return result, err
	}

	return result, s.halt(ctx, result)
}

// broadcast warns all interactive sessions. Best-effort: nobody logged in,
// or wall missing, must not stop an emergency shutdown.
func (s *Sequencer) broadcast(ctx context.Context, result *Result, delay time.Duration) {
	msg := fmt.Sprintf("EMERGENCY SHUTDOWN in %d seconds. Save your work and log off.", int(delay.Seconds()))
	step := types.StepResult{Name: "broadcast-warning"}
	if !s.cap.Available("wall") {
		step.Outcome = types.OutcomeSkipped
		step.Detail = "wall not available"
	} else if err := s.cap.Run(ctx, "wall", msg); err != nil {
		step.Outcome = types.OutcomeWarned
		step.Error = err.Error()
		s.logger.LogStepError(step.Name, false, err)
	} else {
		step.Outcome = types.OutcomeSucceeded
	}
	result.Steps = append(result.Steps, step)
	s.logger.LogStep(step.Name, string(step.Outcome), step.Detail)
}

func (s *Sequencer) stopServices(ctx context.Context, result *Result, stopList []types.ServiceDescriptor) {
	batch := s.controller.Apply(ctx, stopList)
	outcome, detail := services.Summarize(batch)
	result.Steps = append(result.Steps, types.StepResult{
		Name:    "stop-critical-services",
		Outcome: outcome,
		Detail:  detail,
	})
}

// syncDisks flushes filesystem buffers. A sync error before an irreversible
// halt is the one thing here that must never be swallowed.
func (s *Sequencer) syncDisks(ctx context.Context, result *Result) error {
	step := types.StepResult{Name: "filesystem-sync"}
	if err := s.cap.Run(ctx, "sync"); err != nil {
		step.Outcome = types.OutcomeFatal
		step.Error = err.Error()
		result.Steps = append(result.Steps, step)
		s.logger.LogStepError(step.Name, true, err)
		return fmt.Errorf("filesystem sync failed, aborting before halt: %w", err)
	}
	step.Outcome = types.OutcomeSucceeded
	result.Steps = append(result.Steps, step)
	s.logger.LogStep(step.Name, string(step.Outcome), "")
	return nil
}

func (s *Sequencer) writeReport(result *Result) {
	step := types.StepResult{Name: "emergency-report"}
	if s.WriteReport == nil {
		step.Outcome = types.OutcomeSkipped
		step.Detail = "no report writer configured"
	} else if path, err := s.WriteReport(); err != nil {
		step.Outcome = types.OutcomeWarned
		step.Error = err.Error()
		s.logger.LogStepError(step.Name, false, err)
	} else {
		step.Outcome = types.OutcomeSucceeded
		step.Detail = path
		result.ReportPath = path
	}
	result.Steps = append(result.Steps, step)
	s.logger.LogStep(step.Name, string(step.Outcome), step.Detail)
}

// countdown ticks once per second, logging every multiple of 10 and each of
// the final 10 seconds. Cancellation is observed between ticks.
func (s *Sequencer) countdown(ctx context.Context, result *Result, delay time.Duration) error {
	total := int(delay.Seconds())
	for remaining := total; remaining > 0; remaining-- {
		if remaining%10 == 0 || remaining <= 10 {
			s.logger.Info().Int("seconds_remaining", remaining).Msg("shutdown countdown")
		}
		select {
		case <-ctx.Done():
			result.Cancelled = true
			result.Steps = append(result.Steps, types.StepResult{
				Name:    "countdown",
				Outcome: types.OutcomeFatal,
				Detail:  fmt.Sprintf("cancelled with %d seconds remaining", remaining),
				Error:   ctx.Err().Error(),
			})
			s.logger.Warn().Int("seconds_remaining", remaining).Msg("shutdown cancelled before halt")
			return fmt.Errorf("shutdown cancelled during countdown: %w", ctx.Err())
		case <-s.clock.After(time.Second):
		}
	}
	result.Steps = append(result.Steps, types.StepResult{
		Name:    "countdown",
		Outcome: types.OutcomeSucceeded,
		Detail:  fmt.Sprintf("%d seconds elapsed", total),
	})
	return nil
}

// halt issues the terminal poweroff. Nothing runs after a successful halt.
func (s *Sequencer) halt(ctx context.Context, result *Result) error {
	step := types.StepResult{Name: "halt"}

	err := s.cap.Run(ctx, "systemctl", "poweroff", "--force")
	if err != nil {
		err = s.cap.Run(ctx, "shutdown", "-h", "now")
	}
	if err != nil {
		step.Outcome = types.OutcomeFatal
		step.Error = err.Error()
		result.Steps = append(result.Steps, step)
		s.logger.LogStepError(step.Name, true, err)
		return fmt.Errorf("halt command failed: %w", err)
	}

	step.Outcome = types.OutcomeSucceeded
	result.Steps = append(result.Steps, step)
	result.Halted = true
	s.logger.Info().Msg("halt issued")
	return nil
}
