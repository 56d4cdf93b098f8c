package shared

import (
	"context"
	"time"

	"google.golang.org/adk/tool"
)

// InvocationMetadata captures request-scoped identifiers for tool telemetry.
type InvocationMetadata struct {
	AppName        string
	UserID         string
	SessionID      string
	AgentName      string
	InvocationID   string
	FunctionCallID string
}

// MetadataFrom reads the identifiers ADK attaches to a tool call
func MetadataFrom(ctx tool.Context) InvocationMetadata {
	if ctx == nil {
		return InvocationMetadata{}
	}
	return InvocationMetadata{
		AppName:        ctx.AppName(),
		UserID:         ctx.UserID(),
		SessionID:      ctx.SessionID(),
		AgentName:      ctx.AgentName(),
		InvocationID:   ctx.InvocationID(),
		FunctionCallID: ctx.FunctionCallID(),
	}
}

// deadlineContext narrows a tool.Context to a derived context.Context while
// keeping the ADK accessors (state, identifiers, actions) of the original.
type deadlineContext struct {
	tool.Context
	ctx context.Context
}

func (c deadlineContext) Deadline() (time.Time, bool) { return c.ctx.Deadline() }
func (c deadlineContext) Done() <-chan struct{}       { return c.ctx.Done() }
func (c deadlineContext) Err() error                  { return c.ctx.Err() }
func (c deadlineContext) Value(key any) any           { return c.ctx.Value(key) }

// withTimeout returns a tool.Context that expires after d
func withTimeout(ctx tool.Context, d time.Duration) (tool.Context, context.CancelFunc) {
	derived, cancel := context.WithTimeout(ctx, d)
	return deadlineContext{Context: ctx, ctx: derived}, cancel
}
