package stats

import (
	"context"
	"time"
)

// Repository stores tool usage analytics (ClickHouse)
type Repository interface {
	InsertToolUsage(ctx context.Context, event *ToolUsageEvent) error
	InsertToolUsageBatch(ctx context.Context, events []ToolUsageEvent) error

	// Summarize aggregates usage since the given time, optionally for one app
	Summarize(ctx context.Context, appName string, since time.Time) ([]ToolUsageSummary, error)
}
