package clickhouse

import (
	"context"
	"time"

	"tiergate/internal/domain/stats"
	chbatch "tiergate/pkg/clickhouse"
	"tiergate/pkg/logger"
)

var _ stats.Repository = (*BufferedStatsRepository)(nil)

// BufferedStatsRepository batches single tool usage rows in memory and
// writes them with InsertToolUsageBatch. Reads flush first so a summary
// includes every call recorded so far.
type BufferedStatsRepository struct {
	store  stats.Repository
	writer *chbatch.BatchWriter[stats.ToolUsageEvent]
}

// NewBufferedStatsRepository wraps store. Call Start before use and Stop on shutdown.
func NewBufferedStatsRepository(store stats.Repository, maxBatch int, maxAge time.Duration, log *logger.Logger) *BufferedStatsRepository {
	return &BufferedStatsRepository{
		store: store,
		writer: chbatch.NewBatchWriter(chbatch.BatchWriterConfig[stats.ToolUsageEvent]{
			FlushFunc:    store.InsertToolUsageBatch,
			TableName:    "tool_usage",
			MaxBatchSize: maxBatch,
			MaxAge:       maxAge,
			Log:          log,
		}),
	}
}

// Start runs the periodic flush until ctx is cancelled
func (r *BufferedStatsRepository) Start(ctx context.Context) {
	r.writer.Start(ctx)
}

// Stop writes what is still buffered
func (r *BufferedStatsRepository) Stop(ctx context.Context) error {
	return r.writer.Stop(ctx)
}

// InsertToolUsage buffers event
func (r *BufferedStatsRepository) InsertToolUsage(ctx context.Context, event *stats.ToolUsageEvent) error {
	if event == nil {
		return nil
	}
	return r.writer.Add(ctx, *event)
}

// InsertToolUsageBatch buffers events
func (r *BufferedStatsRepository) InsertToolUsageBatch(ctx context.Context, events []stats.ToolUsageEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.writer.Add(ctx, events...)
}

// Summarize flushes pending rows, then reads from the store
func (r *BufferedStatsRepository) Summarize(ctx context.Context, appName string, since time.Time) ([]stats.ToolUsageSummary, error) {
	if err := r.writer.Flush(ctx); err != nil {
		return nil, err
	}
	return r.store.Summarize(ctx, appName, since)
}

// Pending returns the number of buffered rows
func (r *BufferedStatsRepository) Pending() int {
	return r.writer.BufferSize()
}
