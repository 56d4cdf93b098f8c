package agents

import (
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"

	"tiergate/internal/agents/callbacks"
	"tiergate/internal/tools"
	"tiergate/pkg/errors"
)

// BasicAgentName is both the agent name and the app name sessions are stored under
const BasicAgentName = "basic_agent"

const basicAgentDescription = "An agent that has access to different tools such as time and weather lookup"

const basicAgentInstruction = `You are an AI agent that can perform various tasks using tools. Some of these tools are dependent on the user's plan.
The Basic Plan has access to the tools:
- get_current_time
- send_support_link
- retrieve_user_plan
- upgrade_user_plan
The Pro Plan has access to all tools, including:
- get_weather
Always start by listing all the tools available to the user based on their current plan. Use the retrieve_user_plan tool to get the user's current plan and display it to them.
If the request needs a tool that is not available in the current plan, you should inform the user and suggest upgrading their plan.`

// BasicAgentConfig wires the basic agent
type BasicAgentConfig struct {
	Model     model.LLM
	Callbacks callbacks.Deps
}

// NewBasicAgent builds the tier gated agent. Its tools come from a
// TieredToolset, so the runtime resolves them from session state on every
// model request instead of the agent carrying a fixed list.
func NewBasicAgent(cfg BasicAgentConfig) (agent.Agent, error) {
	if cfg.Model == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model is required")
	}
	deps := cfg.Callbacks
	if deps.Resolver == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "tool resolver is required")
	}
	if deps.Timer == nil {
		deps.Timer = callbacks.NewCallTimer()
	}

	toolset := tools.NewToolset(BasicAgentName+"_tools", deps.Resolver)

	return llmagent.New(llmagent.Config{
		Name:        BasicAgentName,
		Description: basicAgentDescription,
		Model:       cfg.Model,
		Instruction: basicAgentInstruction,
		Toolsets:    []tool.Toolset{toolset},
		BeforeAgentCallbacks: []agent.BeforeAgentCallback{
			callbacks.InitialStateBeforeCallback(deps.Log),
			callbacks.ToolResolutionBeforeCallback(deps.Resolver, deps.Log),
		},
		BeforeModelCallbacks: []llmagent.BeforeModelCallback{
			callbacks.ExposedToolsBeforeModelCallback(deps.Log),
		},
		AfterModelCallbacks: []llmagent.AfterModelCallback{
			callbacks.TokenUsageAfterModelCallback(deps.Log),
		},
		BeforeToolCallbacks: []llmagent.BeforeToolCallback{
			callbacks.RecordStartBeforeToolCallback(deps.Timer, deps.Tracker, deps.Log),
		},
		AfterToolCallbacks: []llmagent.AfterToolCallback{
			callbacks.AuditLogAfterToolCallback(deps.Timer, deps.Tracker, deps.Log),
			callbacks.StatsAfterToolCallback(deps.Timer, deps.Stats, deps.Log),
		},
	})
}
