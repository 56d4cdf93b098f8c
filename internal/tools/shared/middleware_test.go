package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/internal/testsupport"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

func okFunc(calls *int) ToolFunc {
	return func(tool.Context, map[string]interface{}) (map[string]interface{}, error) {
		*calls++
		return map[string]interface{}{"ok": true}, nil
	}
}

func TestTierGuard(t *testing.T) {
	tests := []struct {
		name    string
		state   map[string]any
		allowed bool
	}{
		{"basic denied", map[string]any{"plan": 1}, false},
		{"missing plan denied", nil, false},
		{"invalid plan denied", map[string]any{"plan": 42}, false},
		{"pro allowed", map[string]any{"plan": 2}, true},
		{"team allowed", map[string]any{"plan": 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			fn := wrapWithTierGuard("get_weather", plan.Pro, logger.Nop(), okFunc(&calls))
			ctx := testsupport.NewToolContext(context.Background(), testsupport.NewMapState(tt.state))

			_, err := fn(ctx, nil)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, 1, calls)
				return
			}
			assert.True(t, errors.Is(err, errors.ErrForbidden))
			assert.Zero(t, calls)
		})
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	fn := wrapWithRetry(RetryMiddleware{Attempts: 3}, func(tool.Context, map[string]interface{}) (map[string]interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.ErrUnavailable
		}
		return map[string]interface{}{"attempt": attempts}, nil
	})

	out, err := fn(testsupport.NewToolContext(context.Background(), nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out["attempt"])
}

func TestRetry_SkipsInvalidInput(t *testing.T) {
	attempts := 0
	fn := wrapWithRetry(RetryMiddleware{Attempts: 5}, func(tool.Context, map[string]interface{}) (map[string]interface{}, error) {
		attempts++
		return nil, errors.NewValidationError("city", "is required", nil)
	})

	_, err := fn(testsupport.NewToolContext(context.Background(), nil), nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Equal(t, 1, attempts)
}

func TestTimeout(t *testing.T) {
	fn := wrapWithTimeout(TimeoutMiddleware{Timeout: 20 * time.Millisecond}, func(ctx tool.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := fn(testsupport.NewToolContext(context.Background(), nil), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_KeepsToolAccessors(t *testing.T) {
	state := testsupport.NewMapState(map[string]any{"plan": 2})
	fn := wrapWithTimeout(TimeoutMiddleware{Timeout: time.Second}, func(ctx tool.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"tier": CurrentTier(ctx), "session": ctx.SessionID()}, nil
	})

	out, err := fn(testsupport.NewToolContext(context.Background(), state), nil)
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, out["tier"])
	assert.Equal(t, "s_test", out["session"])
}

func TestMetadataFrom(t *testing.T) {
	ctx := testsupport.NewToolContext(context.Background(), nil).WithIdentity(testsupport.Identity{
		AppName:        "app",
		UserID:         "u1",
		SessionID:      "s1",
		AgentName:      "agent",
		InvocationID:   "inv",
		FunctionCallID: "fc",
	})

	assert.Equal(t, InvocationMetadata{
		AppName:        "app",
		UserID:         "u1",
		SessionID:      "s1",
		AgentName:      "agent",
		InvocationID:   "inv",
		FunctionCallID: "fc",
	}, MetadataFrom(ctx))
}

func TestBuild_RequiresHandler(t *testing.T) {
	_, err := NewToolBuilder("x", "y", nil, Deps{}).Build()
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
