package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"tiergate/internal/domain/stats"
	"tiergate/pkg/errors"
)

// Compile-time check
var _ stats.Repository = (*StatsRepository)(nil)

const toolUsageSchema = `
	CREATE TABLE IF NOT EXISTS tool_usage (
		app_name      LowCardinality(String),
		user_id       String,
		session_id    String,
		agent_name    LowCardinality(String),
		invocation_id String,
		tool_name     LowCardinality(String),
		tier          UInt8,
		timestamp     DateTime64(3),
		duration_ms   UInt32,
		success       Bool,
		error         String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (app_name, tool_name, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY`

const insertToolUsage = `
	INSERT INTO tool_usage (
		app_name, user_id, session_id, agent_name, invocation_id,
		tool_name, tier, timestamp, duration_ms, success, error
	)`

// StatsRepository implements stats.Repository using ClickHouse
type StatsRepository struct {
	conn driver.Conn
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(conn driver.Conn) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// EnsureSchema creates the tool_usage table when missing
func (r *StatsRepository) EnsureSchema(ctx context.Context) error {
	return errors.Wrap(r.conn.Exec(ctx, toolUsageSchema), "create tool_usage")
}

// InsertToolUsage inserts a single tool usage event
func (r *StatsRepository) InsertToolUsage(ctx context.Context, event *stats.ToolUsageEvent) error {
	if event == nil {
		return nil
	}
	return r.InsertToolUsageBatch(ctx, []stats.ToolUsageEvent{*event})
}

// InsertToolUsageBatch inserts multiple tool usage events
func (r *StatsRepository) InsertToolUsageBatch(ctx context.Context, events []stats.ToolUsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertToolUsage)
	if err != nil {
		return errors.Wrap(err, "prepare tool_usage batch")
	}

	for i := range events {
		if err := batch.AppendStruct(&events[i]); err != nil {
			return errors.Wrap(err, "append tool_usage row")
		}
	}

	return errors.Wrap(batch.Send(), "send tool_usage batch")
}

// Summarize aggregates calls per tool and tier
func (r *StatsRepository) Summarize(ctx context.Context, appName string, since time.Time) ([]stats.ToolUsageSummary, error) {
	var out []stats.ToolUsageSummary

	query := `
		SELECT
			tool_name,
			tier,
			count() AS call_count,
			countIf(NOT success) AS error_count,
			avg(duration_ms) AS avg_duration_ms
		FROM tool_usage
		WHERE timestamp >= ? AND (? = '' OR app_name = ?)
		GROUP BY tool_name, tier
		ORDER BY call_count DESC`

	if err := r.conn.Select(ctx, &out, query, since, appName, appName); err != nil {
		return nil, errors.Wrap(err, "summarize tool usage")
	}
	return out, nil
}
