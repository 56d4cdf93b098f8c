package shared

import (
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/errors"
)

// ToolBuilder provides a fluent API for creating tools with middleware
type ToolBuilder struct {
	name        string
	description string
	fn          ToolFunc
	deps        Deps
	schema      *jsonschema.Schema

	withRetry   bool
	retryConfig RetryMiddleware

	withTimeout   bool
	timeoutConfig TimeoutMiddleware

	guardTier plan.Tier
}

// NewToolBuilder creates a new builder for a tool
func NewToolBuilder(name, description string, fn ToolFunc, deps Deps) *ToolBuilder {
	return &ToolBuilder{
		name:          name,
		description:   description,
		fn:            fn,
		deps:          deps,
		retryConfig:   RetryMiddleware{Attempts: 3, Backoff: 500 * time.Millisecond},
		timeoutConfig: TimeoutMiddleware{Timeout: 30 * time.Second},
	}
}

// WithRetry enables retry middleware
func (b *ToolBuilder) WithRetry(attempts int, backoff time.Duration) *ToolBuilder {
	b.withRetry = true
	b.retryConfig = RetryMiddleware{
		Attempts: attempts,
		Backoff:  backoff,
	}
	return b
}

// WithTimeout enables timeout middleware
func (b *ToolBuilder) WithTimeout(timeout time.Duration) *ToolBuilder {
	b.withTimeout = true
	b.timeoutConfig = TimeoutMiddleware{
		Timeout: timeout,
	}
	return b
}

// WithTierGuard rejects calls from sessions below minimum
func (b *ToolBuilder) WithTierGuard(minimum plan.Tier) *ToolBuilder {
	b.guardTier = minimum
	return b
}

// WithInputSchema sets the argument schema shown to the model.
// Without it the model sees an object with no declared properties.
func (b *ToolBuilder) WithInputSchema(schema *jsonschema.Schema) *ToolBuilder {
	b.schema = schema
	return b
}

// Build creates the tool with configured middleware applied.
// Order from the inside out: retry, timeout, tier guard.
func (b *ToolBuilder) Build() (tool.Tool, error) {
	fn := b.fn
	if fn == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "tool %q has no handler", b.name)
	}

	if b.withRetry {
		fn = wrapWithRetry(b.retryConfig, fn)
	}

	if b.withTimeout {
		fn = wrapWithTimeout(b.timeoutConfig, fn)
	}

	if b.guardTier > plan.Basic {
		fn = wrapWithTierGuard(b.name, b.guardTier, b.deps.Logger(), fn)
	}

	t, err := functiontool.New(
		functiontool.Config{
			Name:        b.name,
			Description: b.description,
			InputSchema: b.schema,
		},
		func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
			return fn(ctx, args)
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "build tool %q", b.name)
	}
	return t, nil
}

// MustBuild is Build for package-level tool constructors
func (b *ToolBuilder) MustBuild() tool.Tool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
