package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/domain/stats"
	"tiergate/pkg/logger"
)

type recordingStats struct {
	mu      sync.Mutex
	batches [][]stats.ToolUsageEvent
}

func (r *recordingStats) InsertToolUsage(ctx context.Context, event *stats.ToolUsageEvent) error {
	return r.InsertToolUsageBatch(ctx, []stats.ToolUsageEvent{*event})
}

func (r *recordingStats) InsertToolUsageBatch(_ context.Context, events []stats.ToolUsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
	return nil
}

func (r *recordingStats) Summarize(_ context.Context, _ string, _ time.Time) ([]stats.ToolUsageSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]uint64{}
	var order []string
	for _, b := range r.batches {
		for _, e := range b {
			if counts[e.ToolName] == 0 {
				order = append(order, e.ToolName)
			}
			counts[e.ToolName]++
		}
	}
	out := make([]stats.ToolUsageSummary, 0, len(order))
	for _, name := range order {
		out = append(out, stats.ToolUsageSummary{ToolName: name, CallCount: counts[name]})
	}
	return out, nil
}

func TestBufferedStatsRepository_BatchesInserts(t *testing.T) {
	store := &recordingStats{}
	repo := NewBufferedStatsRepository(store, 3, time.Hour, logger.Nop())
	ctx := context.Background()

	for _, name := range []string{"get_current_time", "get_weather"} {
		require.NoError(t, repo.InsertToolUsage(ctx, &stats.ToolUsageEvent{ToolName: name}))
	}
	assert.Empty(t, store.batches)
	assert.Equal(t, 2, repo.Pending())

	require.NoError(t, repo.InsertToolUsage(ctx, &stats.ToolUsageEvent{ToolName: "get_weather"}))
	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 3)
	assert.Zero(t, repo.Pending())
}

func TestBufferedStatsRepository_SummarizeSeesPendingRows(t *testing.T) {
	store := &recordingStats{}
	repo := NewBufferedStatsRepository(store, 100, time.Hour, logger.Nop())
	ctx := context.Background()

	require.NoError(t, repo.InsertToolUsage(ctx, &stats.ToolUsageEvent{ToolName: "get_weather"}))
	require.NoError(t, repo.InsertToolUsage(ctx, nil))

	summary, err := repo.Summarize(ctx, "", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, uint64(1), summary[0].CallCount)
}

func TestBufferedStatsRepository_StopFlushes(t *testing.T) {
	store := &recordingStats{}
	repo := NewBufferedStatsRepository(store, 100, time.Hour, logger.Nop())
	repo.Start(context.Background())

	require.NoError(t, repo.InsertToolUsageBatch(context.Background(), []stats.ToolUsageEvent{{ToolName: "a"}, {ToolName: "b"}}))
	require.NoError(t, repo.Stop(context.Background()))

	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 2)
}
