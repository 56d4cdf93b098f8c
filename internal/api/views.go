package api

import (
	"time"

	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// EventView is the wire form of a session event (camelCase, like the ADK web
// server). Timestamp is Unix seconds with a fractional part.
type EventView struct {
	ID            string                                      `json:"id"`
	InvocationID  string                                      `json:"invocationId"`
	Author        string                                      `json:"author"`
	Branch        string                                      `json:"branch,omitempty"`
	Timestamp     float64                                     `json:"timestamp"`
	Content       *genai.Content                              `json:"content,omitempty"`
	Partial       bool                                        `json:"partial,omitempty"`
	TurnComplete  bool                                        `json:"turnComplete,omitempty"`
	ErrorCode     string                                      `json:"errorCode,omitempty"`
	ErrorMessage  string                                      `json:"errorMessage,omitempty"`
	Actions       ActionsView                                 `json:"actions"`
	UsageMetadata *genai.GenerateContentResponseUsageMetadata `json:"usageMetadata,omitempty"`
}

// ActionsView is the wire form of event actions
type ActionsView struct {
	StateDelta        map[string]any `json:"stateDelta,omitempty"`
	TransferToAgent   string         `json:"transferToAgent,omitempty"`
	Escalate          bool           `json:"escalate,omitempty"`
	SkipSummarization bool           `json:"skipSummarization,omitempty"`
}

// SessionView is the wire form of a session
type SessionView struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state"`
	Events         []EventView    `json:"events"`
	LastUpdateTime float64        `json:"lastUpdateTime"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func newEventView(e *session.Event) EventView {
	return EventView{
		ID:           e.ID,
		InvocationID: e.InvocationID,
		Author:       e.Author,
		Branch:       e.Branch,
		Timestamp:    unixSeconds(e.Timestamp),
		Content:      e.Content,
		Partial:      e.Partial,
		TurnComplete: e.TurnComplete,
		ErrorCode:    e.ErrorCode,
		ErrorMessage: e.ErrorMessage,
		Actions: ActionsView{
			StateDelta:        e.Actions.StateDelta,
			TransferToAgent:   e.Actions.TransferToAgent,
			Escalate:          e.Actions.Escalate,
			SkipSummarization: e.Actions.SkipSummarization,
		},
		UsageMetadata: e.UsageMetadata,
	}
}

func newEventViews(events []*session.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		if e != nil {
			out = append(out, newEventView(e))
		}
	}
	return out
}

func newSessionView(s session.Session) SessionView {
	state := make(map[string]any)
	for k, v := range s.State().All() {
		state[k] = v
	}

	var events []EventView
	for e := range s.Events().All() {
		events = append(events, newEventView(e))
	}
	if events == nil {
		events = []EventView{}
	}

	return SessionView{
		ID:             s.ID(),
		AppName:        s.AppName(),
		UserID:         s.UserID(),
		State:          state,
		Events:         events,
		LastUpdateTime: unixSeconds(s.LastUpdateTime()),
	}
}
