package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session represents a stored agent conversation
type Session struct {
	ID        uuid.UUID // row id
	AppName   string
	UserID    string
	SessionID string
	State     map[string]interface{}
	Events    []Event
	UpdatedAt time.Time
	CreatedAt time.Time
}

// Event represents a session event (message, tool call or tool response)
type Event struct {
	ID           uuid.UUID
	SessionRowID uuid.UUID
	EventID      string // runtime event id
	InvocationID string
	Author       string // agent name or "user"
	Branch       string
	// Content is the serialized message, opaque to this package
	Content       json.RawMessage
	Timestamp     time.Time
	Partial       bool
	TurnComplete  bool
	ErrorCode     string
	ErrorMessage  string
	Actions       EventActions
	UsageMetadata *UsageMetadata
}

// EventActions contains actions that can be performed with an event
type EventActions struct {
	TransferToAgent   string                 `json:"transfer_to_agent,omitempty"`
	Escalate          bool                   `json:"escalate,omitempty"`
	SkipSummarization bool                   `json:"skip_summarization,omitempty"`
	StateDelta        map[string]interface{} `json:"state_delta,omitempty"`
}

// UsageMetadata tracks token usage for an event
type UsageMetadata struct {
	PromptTokenCount     int32 `json:"prompt_token_count"`
	CandidatesTokenCount int32 `json:"candidates_token_count"`
	TotalTokenCount      int32 `json:"total_token_count"`
}

// AppState represents application-level state shared across all users
type AppState struct {
	AppName string
	State   map[string]interface{}
}

// UserState represents user-level state shared across all user's sessions
type UserState struct {
	AppName string
	UserID  string
	State   map[string]interface{}
}

// State key prefixes. Keys without a prefix belong to the session.
const (
	KeyPrefixApp  = "app:"
	KeyPrefixUser = "user:"
	KeyPrefixTemp = "temp:"
)
