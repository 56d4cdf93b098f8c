package callbacks

import (
	"google.golang.org/adk/agent"
	"google.golang.org/genai"

	"tiergate/internal/agents/state"
	"tiergate/internal/tools"
	"tiergate/pkg/logger"
)

// InitialStateBeforeCallback writes the session bootstrap markers on the
// first turn of a session. Later turns leave them untouched.
func InitialStateBeforeCallback(log *logger.Logger) agent.BeforeAgentCallback {
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		log := log.With(
			"agent", ctx.AgentName(),
			"user", ctx.UserID(),
			"session", ctx.SessionID(),
		)

		if state.IsInitialized(ctx.ReadonlyState()) {
			log.Debugw("State already initialized, skipping")
			return nil, nil
		}

		log.Infow("Setting initial state for the agent")
		if err := state.MarkInitialized(ctx.State(), ctx.SessionID(), ctx.UserID()); err != nil {
			// the turn can run without markers
			log.Warnw("Failed to write initial state", "error", err)
		}
		return nil, nil
	}
}

// ToolResolutionBeforeCallback logs the tier and tools a turn starts with.
// The tool list itself is installed per request by tools.TieredToolset.
func ToolResolutionBeforeCallback(resolver *tools.Resolver, log *logger.Logger) agent.BeforeAgentCallback {
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		st := ctx.ReadonlyState()
		tier := resolver.TierOf(st)
		visible := resolver.ForTier(tier)

		log.Infow("Before agent turn",
			"agent", ctx.AgentName(),
			"user", ctx.UserID(),
			"session", ctx.SessionID(),
			"tier", tier.String(),
			"tools", tools.Names(visible),
		)
		return nil, nil
	}
}
