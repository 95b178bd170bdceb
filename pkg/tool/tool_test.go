package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
)

type countingAdapter struct {
	transport config.ToolTransport
	calls     int
	fail      int
	kind      ErrorKind
}

func (a *countingAdapter) Transport() config.ToolTransport          { return a.transport }
func (a *countingAdapter) Validate(config.ToolDefinition) []string { return nil }
func (a *countingAdapter) Close() error                             { return nil }
func (a *countingAdapter) Execute(ctx context.Context, def config.ToolDefinition, call Call) (any, error) {
	a.calls++
	if a.calls <= a.fail {
		return nil, &Error{Kind: a.kind, Err: assert.AnError}
	}
	return "ok", nil
}

func TestExecuteWithRetryRetriesRetryableErrorsUntilSuccess(t *testing.T) {
	adapter := &countingAdapter{transport: config.TransportLocal, fail: 2, kind: ErrorTimeout}
	def := config.ToolDefinition{
		Name:      "flaky",
		Transport: config.TransportLocal,
		RetryPolicy: config.RetryPolicy{
			MaxAttempts:    5,
			InitialDelayMS: 1,
			MaxDelayMS:     5,
		},
	}

	result := ExecuteWithRetry(context.Background(), adapter, def, Call{ToolName: "flaky"})
	require.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "ok", result.Value)
}

func TestExecuteWithRetryStopsOnNonRetryableError(t *testing.T) {
	adapter := &countingAdapter{transport: config.TransportLocal, fail: 5, kind: ErrorPermanent}
	def := config.ToolDefinition{
		Name:      "broken",
		Transport: config.TransportLocal,
		RetryPolicy: config.RetryPolicy{
			MaxAttempts:    5,
			InitialDelayMS: 1,
		},
	}

	result := ExecuteWithRetry(context.Background(), adapter, def, Call{ToolName: "broken"})
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestBackoffDelayGrowsExponentiallyAndCaps(t *testing.T) {
	policy := config.RetryPolicy{InitialDelayMS: 100, ExponentialBase: 2, MaxDelayMS: 350}
	assert.Equal(t, 100*time.Millisecond, backoffDelay(policy, 1))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(policy, 2))
	assert.Equal(t, 350*time.Millisecond, backoffDelay(policy, 3))
}

func TestRegistryInvokeDispatchesToCorrectAdapter(t *testing.T) {
	reg := NewRegistry()
	local := &countingAdapter{transport: config.TransportLocal}
	reg.RegisterAdapter(local)

	def := config.ToolDefinition{Name: "t1", Transport: config.TransportLocal}
	require.NoError(t, reg.RegisterTool(def))

	result, err := reg.Invoke(context.Background(), Call{ToolName: "t1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, local.calls)
}

func TestRegistryInvokeRejectsDisabledTool(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAdapter(&countingAdapter{transport: config.TransportLocal})

	disabled := false
	def := config.ToolDefinition{Name: "t1", Transport: config.TransportLocal, Enabled: &disabled}
	require.NoError(t, reg.RegisterTool(def))

	_, err := reg.Invoke(context.Background(), Call{ToolName: "t1"})
	assert.Error(t, err)
}

func TestRegisterToolRejectsUnknownTransport(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterTool(config.ToolDefinition{Name: "x", Transport: config.TransportMCP})
	assert.Error(t, err)
}

type rejectingAdapter struct {
	countingAdapter
	violations []string
}

func (a *rejectingAdapter) Validate(config.ToolDefinition) []string { return a.violations }

func TestRegisterToolRejectsAdapterValidationViolations(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAdapter(&rejectingAdapter{
		countingAdapter: countingAdapter{transport: config.TransportLocal},
		violations:      []string{"source is required"},
	})

	err := reg.RegisterTool(config.ToolDefinition{Name: "bad", Transport: config.TransportLocal})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source is required")
}
