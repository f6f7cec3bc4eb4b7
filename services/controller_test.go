package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellsec/quell/capability"
	"github.com/quellsec/quell/telemetry"
	"github.com/quellsec/quell/types"
)

func newTestController(t *testing.T, fake *capability.Fake) *Controller {
	t.Helper()
	logger := telemetry.NewLogger(t.TempDir(), "test", "run-1", "")
	t.Cleanup(logger.Close)
	return NewController(fake, logger)
}

func TestApply_StopActiveService(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-active nginx", "active\n", nil)
	fake.Script("systemctl stop nginx", "", nil)

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "nginx", DesiredState: types.StateStopped},
	})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSucceeded, results[0].Outcome)
	assert.True(t, fake.CalledWith("systemctl stop nginx"))
}

func TestApply_InactiveServiceIsSkipped(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-active nginx", "inactive\n", errors.New("exit status 3"))

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "nginx", DesiredState: types.StateStopped},
	})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSkipped, results[0].Outcome)
	assert.False(t, fake.CalledWith("systemctl stop nginx"))
}

func TestApply_StopFailureWarnsAndContinues(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-active apache2", "active\n", nil)
	fake.Script("systemctl stop apache2", "", errors.New("job failed"))
	fake.Script("systemctl is-active nginx", "active\n", nil)
	fake.Script("systemctl stop nginx", "", nil)

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "apache2", DesiredState: types.StateStopped},
		{Name: "nginx", DesiredState: types.StateStopped},
	})

	require.Len(t, results, 2)
	assert.Equal(t, types.OutcomeWarned, results[0].Outcome)
	assert.Equal(t, types.OutcomeSucceeded, results[1].Outcome)
}

func TestApply_DisableEnabledService(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-enabled apache2", "enabled\n", nil)
	fake.Script("systemctl disable apache2", "", nil)

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "apache2", DesiredState: types.StateDisabled},
	})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSucceeded, results[0].Outcome)
}

func TestApply_DisabledServiceIsSkipped(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-enabled apache2", "disabled\n", errors.New("exit status 1"))

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "apache2", DesiredState: types.StateDisabled},
	})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSkipped, results[0].Outcome)
}

func TestApply_RestartActiveService(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-active nginx", "active\n", nil)
	fake.Script("systemctl restart nginx", "", nil)

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "nginx", DesiredState: types.StateRestarted},
	})

	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeSucceeded, results[0].Outcome)
}

func TestApply_OrderPreserved(t *testing.T) {
	fake := capability.NewFake()
	fake.Script("systemctl is-active a", "active\n", nil)
	fake.Script("systemctl stop a", "", nil)
	fake.Script("systemctl is-active b", "active\n", nil)
	fake.Script("systemctl stop b", "", nil)

	c := newTestController(t, fake)
	results := c.Apply(context.Background(), []types.ServiceDescriptor{
		{Name: "a", DesiredState: types.StateStopped},
		{Name: "b", DesiredState: types.StateStopped},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Service)
	assert.Equal(t, "b", results[1].Service)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		results []types.ServiceResult
		want    types.StepOutcome
	}{
		{"all skipped", []types.ServiceResult{
			{Outcome: types.OutcomeSkipped}, {Outcome: types.OutcomeSkipped},
		}, types.OutcomeSkipped},
		{"any warned", []types.ServiceResult{
			{Outcome: types.OutcomeSucceeded}, {Outcome: types.OutcomeWarned},
		}, types.OutcomeWarned},
		{"all succeeded", []types.ServiceResult{
			{Outcome: types.OutcomeSucceeded},
		}, types.OutcomeSucceeded},
		{"mixed skip and success", []types.ServiceResult{
			{Outcome: types.OutcomeSkipped}, {Outcome: types.OutcomeSucceeded},
		}, types.OutcomeSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Summarize(tt.results)
			assert.Equal(t, tt.want, got)
		})
	}
}
