package callbacks

import (
	"sort"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"

	"tiergate/internal/metrics"
	"tiergate/pkg/logger"
)

// ExposedToolsBeforeModelCallback logs the tool declarations actually sent
// to the model for a request.
func ExposedToolsBeforeModelCallback(log *logger.Logger) llmagent.BeforeModelCallback {
	return func(ctx agent.CallbackContext, req *model.LLMRequest) (*model.LLMResponse, error) {
		if req == nil {
			return nil, nil
		}
		names := make([]string, 0, len(req.Tools))
		for name := range req.Tools {
			names = append(names, name)
		}
		sort.Strings(names)

		log.Debugw("Model request",
			"agent", ctx.AgentName(),
			"session", ctx.SessionID(),
			"tools", names,
		)
		return nil, nil
	}
}

// TokenUsageAfterModelCallback records token usage of each model response
func TokenUsageAfterModelCallback(log *logger.Logger) llmagent.AfterModelCallback {
	return func(ctx agent.CallbackContext, resp *model.LLMResponse, respErr error) (*model.LLMResponse, error) {
		if respErr != nil || resp == nil || resp.UsageMetadata == nil {
			return nil, nil
		}
		usage := resp.UsageMetadata

		log.Debugw("Tokens used",
			"agent", ctx.AgentName(),
			"prompt", usage.PromptTokenCount,
			"completion", usage.CandidatesTokenCount,
			"total", usage.TotalTokenCount,
		)
		metrics.RecordTokens(ctx.AgentName(), usage.PromptTokenCount, usage.CandidatesTokenCount)
		return nil, nil
	}
}
