package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// OpenAIConfig configures the OpenAI chat provider
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string // optional, for OpenAI compatible endpoints
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// OpenAIProvider implements ChatProvider using the official OpenAI Go SDK
type OpenAIProvider struct {
	client  openai.Client
	limiter *Limiter
	timeout time.Duration
	log     *logger.Logger
}

// NewOpenAIProvider creates a new OpenAI chat provider
func NewOpenAIProvider(cfg OpenAIConfig, log *logger.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		limiter: NewLimiter(ProviderNameOpenAI.String(), cfg.RequestsPerSecond, cfg.Burst),
		timeout: cfg.Timeout,
		log:     log.With("component", "openai_chat"),
	}, nil
}

func (p *OpenAIProvider) Name() ProviderName {
	return ProviderNameOpenAI
}

// Chat sends a chat completion request
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, toOpenAIParams(req))
	if err != nil {
		return nil, errors.Wrap(err, "openai API call failed")
	}

	p.log.Debugw("Chat completion",
		"model", resp.Model,
		"choices", len(resp.Choices),
		"tokens", resp.Usage.TotalTokens,
	)

	return fromOpenAIResponse(resp), nil
}

func toOpenAIParams(req ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, assistantMessage(msg))
		case RoleTool:
			params.Messages = append(params.Messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}

	return params
}

func assistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}

	assistant := openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		assistant.Content.OfString = openai.String(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func fromOpenAIResponse(resp *openai.ChatCompletion) *ChatResponse {
	out := &ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	for _, choice := range resp.Choices {
		msg := Message{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}

		out.Choices = append(out.Choices, Choice{
			Index:        int(choice.Index),
			Message:      msg,
			FinishReason: finishReason(choice.FinishReason),
		})
	}

	return out
}

func finishReason(raw string) FinishReason {
	switch raw {
	case "length":
		return FinishReasonLength
	case "tool_calls", "function_call":
		return FinishReasonToolCalls
	case "content_filter":
		return FinishReasonError
	default:
		return FinishReasonStop
	}
}

var _ ChatProvider = (*OpenAIProvider)(nil)
