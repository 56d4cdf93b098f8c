package shared

import (
	"time"

	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// RetryMiddleware retries tool execution on error with optional backoff
type RetryMiddleware struct {
	Attempts int
	Backoff  time.Duration
}

// TimeoutMiddleware bounds a single tool execution
type TimeoutMiddleware struct {
	Timeout time.Duration
}

func wrapWithRetry(retry RetryMiddleware, fn ToolFunc) ToolFunc {
	attempts := retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		var result map[string]interface{}
		var err error

		for i := 0; i < attempts; i++ {
			result, err = fn(ctx, args)
			if err == nil {
				return result, nil
			}
			// bad input will not get better
			if errors.Is(err, errors.ErrInvalidInput) || errors.Is(err, errors.ErrForbidden) {
				return result, err
			}

			if retry.Backoff > 0 && i < attempts-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(retry.Backoff):
				}
			}
		}

		return result, err
	}
}

func wrapWithTimeout(timeout TimeoutMiddleware, fn ToolFunc) ToolFunc {
	if timeout.Timeout <= 0 {
		return fn
	}

	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		tctx, cancel := withTimeout(ctx, timeout.Timeout)
		defer cancel()

		result, err := fn(tctx, args)
		if err == nil && tctx.Err() != nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "after %s", timeout.Timeout)
		}
		return result, err
	}
}

// wrapWithTierGuard re-checks the session tier at call time. The toolset
// already hides gated tools, this catches calls made against a stale tool list.
func wrapWithTierGuard(name string, minimum plan.Tier, log *logger.Logger, fn ToolFunc) ToolFunc {
	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		current := CurrentTier(ctx)
		if !current.AtLeast(minimum) {
			log.Warnw("Rejected gated tool call",
				"tool", name,
				"required", minimum.String(),
				"current", current.String(),
				"session", ctx.SessionID(),
			)
			return nil, errors.Wrapf(errors.ErrForbidden, "%s requires %s, session is on %s",
				name, minimum.Label(), current.Label())
		}
		return fn(ctx, args)
	}
}

// CurrentTier reads the plan from the tool's session state with the
// resolver's fail-soft rules.
func CurrentTier(ctx tool.Context) plan.Tier {
	if ctx == nil {
		return plan.Default
	}
	state := ctx.State()
	if state == nil {
		return plan.Default
	}
	raw, err := state.Get(plan.StateKey)
	if err != nil {
		return plan.Default
	}
	tier, _ := plan.FromValue(raw)
	return tier
}
