package adk

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"tiergate/internal/adapters/ai"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// ModelAdapter adapts an ai.ChatProvider to ADK's model.LLM interface.
// Function calls and responses keep their ids so providers that pair tool
// results with calls (OpenAI) get a consistent history.
type ModelAdapter struct {
	provider  ai.ChatProvider
	modelName string
	maxTokens int
	log       *logger.Logger
}

// NewModelAdapter creates a new ADK model adapter.
func NewModelAdapter(provider ai.ChatProvider, modelName string, maxTokens int, log *logger.Logger) *ModelAdapter {
	return &ModelAdapter{
		provider:  provider,
		modelName: modelName,
		maxTokens: maxTokens,
		log:       log.With("component", "model_adapter", "model", modelName),
	}
}

// Name returns the model name.
func (m *ModelAdapter) Name() string {
	return m.modelName
}

// GenerateContent implements model.LLM. Providers behind the adapter answer
// in one piece, so a streaming request yields the single final response.
func (m *ModelAdapter) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := m.toChatRequest(req)
		if err != nil {
			yield(nil, err)
			return
		}

		m.log.Debugw("Calling LLM",
			"provider", m.provider.Name().String(),
			"messages", len(chatReq.Messages),
			"tools", len(chatReq.Tools),
			"stream", stream,
		)

		resp, err := m.provider.Chat(ctx, chatReq)
		if err != nil {
			m.log.Errorw("LLM call failed", "error", err)
			yield(nil, errors.Wrap(err, "chat provider failed"))
			return
		}

		yield(m.toLLMResponse(resp), nil)
	}
}

func (m *ModelAdapter) toChatRequest(req *model.LLMRequest) (ai.ChatRequest, error) {
	chatReq := ai.ChatRequest{
		Model:       m.modelName,
		MaxTokens:   m.maxTokens,
		Temperature: 0.7,
	}
	if req == nil {
		return chatReq, errors.Wrap(errors.ErrInvalidInput, "nil llm request")
	}

	if cfg := req.Config; cfg != nil {
		if cfg.Temperature != nil {
			chatReq.Temperature = float64(*cfg.Temperature)
		}
		if cfg.MaxOutputTokens > 0 {
			chatReq.MaxTokens = int(cfg.MaxOutputTokens)
		}
		if text := contentText(cfg.SystemInstruction); text != "" {
			chatReq.Messages = append(chatReq.Messages, ai.Message{Role: ai.RoleSystem, Content: text})
		}

		tools, err := toolDefinitions(cfg.Tools)
		if err != nil {
			return chatReq, err
		}
		chatReq.Tools = tools
	}

	for _, content := range req.Contents {
		chatReq.Messages = append(chatReq.Messages, toMessages(content)...)
	}

	return chatReq, nil
}

// toMessages splits one content into provider messages. Each function
// response becomes its own tool message.
func toMessages(content *genai.Content) []ai.Message {
	if content == nil {
		return nil
	}

	var (
		out  []ai.Message
		text []string
		msg  = ai.Message{Role: roleOf(content.Role)}
	)

	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			args, _ := json.Marshal(part.FunctionCall.Args)
			msg.ToolCalls = append(msg.ToolCalls, ai.ToolCall{
				ID:        callID(part.FunctionCall.ID, part.FunctionCall.Name),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		case part.FunctionResponse != nil:
			body, _ := json.Marshal(part.FunctionResponse.Response)
			out = append(out, ai.Message{
				Role:       ai.RoleTool,
				Content:    string(body),
				ToolCallID: callID(part.FunctionResponse.ID, part.FunctionResponse.Name),
				Name:       part.FunctionResponse.Name,
			})
		case part.Text != "" && !part.Thought:
			text = append(text, part.Text)
		}
	}

	msg.Content = strings.Join(text, "\n")
	if msg.Content != "" || len(msg.ToolCalls) > 0 {
		out = append([]ai.Message{msg}, out...)
	}
	return out
}

func roleOf(role string) ai.MessageRole {
	switch role {
	case "model":
		return ai.RoleAssistant
	case "system":
		return ai.RoleSystem
	default:
		return ai.RoleUser
	}
}

// callID falls back to the function name for histories written without ids
func callID(id, name string) string {
	if id != "" {
		return id
	}
	return name
}

func contentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var parts []string
	for _, p := range content.Parts {
		if p != nil && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// toolDefinitions flattens function declarations. The JSON schema form is
// preferred; declarations without parameters get an empty object schema.
func toolDefinitions(tools []*genai.Tool) ([]ai.ToolDefinition, error) {
	var defs []ai.ToolDefinition
	for _, t := range tools {
		if t == nil {
			continue
		}
		for _, decl := range t.FunctionDeclarations {
			if decl == nil {
				continue
			}
			params, err := schemaMap(decl)
			if err != nil {
				return nil, errors.Wrapf(err, "tool %s", decl.Name)
			}
			defs = append(defs, ai.ToolDefinition{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  params,
			})
		}
	}
	return defs, nil
}

func schemaMap(decl *genai.FunctionDeclaration) (map[string]interface{}, error) {
	var src any
	switch {
	case decl.ParametersJsonSchema != nil:
		src = decl.ParametersJsonSchema
	case decl.Parameters != nil:
		src = decl.Parameters
	default:
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}, nil
	}

	data, err := json.Marshal(src)
	if err != nil {
		return nil, errors.Wrap(err, "marshal parameters")
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal parameters")
	}
	return out, nil
}

func (m *ModelAdapter) toLLMResponse(resp *ai.ChatResponse) *model.LLMResponse {
	out := &model.LLMResponse{TurnComplete: true}

	if resp == nil || len(resp.Choices) == 0 {
		out.FinishReason = genai.FinishReasonOther
		out.ErrorCode = "EMPTY_RESPONSE"
		out.ErrorMessage = "no choices in response"
		return out
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: "model"}

	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, genai.NewPartFromText(choice.Message.Content))
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]interface{}{}
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				m.log.Warnw("Failed to parse tool call arguments", "tool", tc.Name, "error", err)
				continue
			}
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
		})
	}

	out.Content = content

	switch choice.FinishReason {
	case ai.FinishReasonLength:
		out.FinishReason = genai.FinishReasonMaxTokens
	case ai.FinishReasonError:
		out.FinishReason = genai.FinishReasonOther
	default:
		out.FinishReason = genai.FinishReasonStop
	}

	out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(resp.Usage.PromptTokens),
		CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
		TotalTokenCount:      int32(resp.Usage.TotalTokens),
	}

	return out
}

var _ model.LLM = (*ModelAdapter)(nil)
