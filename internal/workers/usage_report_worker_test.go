package workers

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/domain/stats"
	"tiergate/internal/metrics"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

type fakeStats struct {
	stats.Repository
	since     time.Time
	summaries []stats.ToolUsageSummary
	err       error
}

func (f *fakeStats) Summarize(_ context.Context, _ string, since time.Time) ([]stats.ToolUsageSummary, error) {
	f.since = since
	return f.summaries, f.err
}

func TestUsageReportWorker_Run(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeStats{summaries: []stats.ToolUsageSummary{
		{ToolName: "get_current_time", Tier: 1, CallCount: 7},
		{ToolName: "get_weather", Tier: 2, CallCount: 3, ErrorCount: 1},
	}}

	w := NewUsageReportWorker(NewBaseWorker("usage_report", time.Minute, true, logger.Nop()), repo, time.Hour)
	w.now = func() time.Time { return now }

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, now.Add(-time.Hour), repo.since)
	assert.Len(t, w.Last(), 2)
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.ToolUsageWindow.WithLabelValues("get_current_time", "1")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ToolUsageWindow.WithLabelValues("get_weather", "2")))
}

func TestUsageReportWorker_StoreError(t *testing.T) {
	repo := &fakeStats{err: errors.ErrUnavailable}
	w := NewUsageReportWorker(NewBaseWorker("usage_report", time.Minute, true, logger.Nop()), repo, time.Hour)

	assert.ErrorIs(t, w.Run(context.Background()), errors.ErrUnavailable)
	assert.Empty(t, w.Last())
}
