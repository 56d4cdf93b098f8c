package stats

import (
	"time"
)

// ToolUsageEvent is a single tool call
type ToolUsageEvent struct {
	AppName      string    `ch:"app_name"`
	UserID       string    `ch:"user_id"`
	SessionID    string    `ch:"session_id"`
	AgentName    string    `ch:"agent_name"`
	InvocationID string    `ch:"invocation_id"`
	ToolName     string    `ch:"tool_name"`
	Tier         uint8     `ch:"tier"`
	Timestamp    time.Time `ch:"timestamp"`

	DurationMs uint32 `ch:"duration_ms"`
	Success    bool   `ch:"success"`
	Error      string `ch:"error"`
}

// ToolUsageSummary aggregates calls per tool and tier
type ToolUsageSummary struct {
	ToolName      string  `ch:"tool_name" json:"tool_name"`
	Tier          uint8   `ch:"tier" json:"tier"`
	CallCount     uint64  `ch:"call_count" json:"call_count"`
	ErrorCount    uint64  `ch:"error_count" json:"error_count"`
	AvgDurationMs float64 `ch:"avg_duration_ms" json:"avg_duration_ms"`
}
