package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Output(t *testing.T) {
	e := NewExec(10 * time.Second)

	out, err := e.Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExec_FailureIncludesCommandLine(t *testing.T) {
	e := NewExec(10 * time.Second)

	err := e.Run(context.Background(), "false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "false")
}

func TestExec_Available(t *testing.T) {
	e := NewExec(time.Second)
	assert.True(t, e.Available("echo"))
	assert.False(t, e.Available("quell-no-such-tool"))
}

func TestExec_DefaultTimeout(t *testing.T) {
	e := NewExec(0)
	assert.Equal(t, 5*time.Minute, e.Timeout)
}

func TestFake_ScriptedResponses(t *testing.T) {
	f := NewFake()
	f.Script("systemctl is-active nginx", "active\n", nil)
	f.Script("systemctl stop nginx", "", errors.New("denied"))

	out, err := f.Output(context.Background(), "systemctl", "is-active", "nginx")
	require.NoError(t, err)
	assert.Equal(t, "active\n", out)

	err = f.Run(context.Background(), "systemctl", "stop", "nginx")
	assert.Error(t, err)

	assert.True(t, f.CalledWith("systemctl is-active"))
	assert.Len(t, f.Calls, 2)
}

func TestFake_UnmatchedBehavior(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Run(context.Background(), "anything"))

	f.FailUnmatched = true
	assert.Error(t, f.Run(context.Background(), "anything"))
}

func TestFake_CancelledContext(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Run(ctx, "sync")
	assert.ErrorIs(t, err, context.Canceled)
}
