package types

import "fmt"

// DesiredState is the lifecycle state a service descriptor asks for.
type DesiredState string

const (
	StateStopped   DesiredState = "stopped"
	StateDisabled  DesiredState = "disabled"
	StateRestarted DesiredState = "restarted"
)

// ServiceDescriptor names a service and the state it should be driven to.
// Descriptors are applied in list order; membership and order are part of
// each action's contract.
type ServiceDescriptor struct {
	Name         string       `json:"name" yaml:"name"`
	DesiredState DesiredState `json:"desired_state" yaml:"desired_state"`
}

// Validate ensures the descriptor is usable.
func (d ServiceDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	switch d.DesiredState {
	case StateStopped, StateDisabled, StateRestarted:
		return nil
	}
	return fmt.Errorf("service %s: unknown desired state %q", d.Name, string(d.DesiredState))
}

// ServiceResult is the per-service outcome of a controller batch.
type ServiceResult struct {
	Service string       `json:"service"`
	Desired DesiredState `json:"desired"`
	Outcome StepOutcome  `json:"outcome"`
	Detail  string       `json:"detail,omitempty"`
}
