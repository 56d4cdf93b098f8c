package ai

import "context"

// ProviderName identifies a chat backend
type ProviderName string

const (
	ProviderNameGemini ProviderName = "gemini"
	ProviderNameOpenAI ProviderName = "openai"
)

func (p ProviderName) String() string {
	return string(p)
}

// ChatProvider is a non-streaming chat completion backend that can call tools.
// The ADK model adapter translates genai requests into this shape.
type ChatProvider interface {
	Name() ProviderName
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one completion call: history plus the tools visible this turn
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// MessageRole is the OpenAI style author of a message
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one history entry. Tool results carry ToolCallID and Name,
// assistant turns that call tools carry ToolCalls.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolDefinition is a gated tool as the model sees it. Parameters is a JSON
// schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall asks the runtime to run Name with JSON encoded Arguments
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatResponse is the provider reply, usually with a single choice
type ChatResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

type Choice struct {
	Index        int
	Message      Message
	FinishReason FinishReason
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonError     FinishReason = "error"
)

// Usage is token accounting, copied into genai usage metadata
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
