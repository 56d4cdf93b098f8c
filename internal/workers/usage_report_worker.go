package workers

import (
	"context"
	"sync"
	"time"

	"tiergate/internal/domain/stats"
	"tiergate/internal/metrics"
	"tiergate/pkg/errors"
)

// UsageReportWorker summarizes recent tool usage from the analytics store
// into the tiergate_tool_usage_window_calls gauge and the log.
type UsageReportWorker struct {
	*BaseWorker
	repo   stats.Repository
	window time.Duration
	now    func() time.Time

	lastMu sync.Mutex
	last   []stats.ToolUsageSummary
}

// NewUsageReportWorker creates a worker reporting the last window of usage
// every interval
func NewUsageReportWorker(base *BaseWorker, repo stats.Repository, window time.Duration) *UsageReportWorker {
	return &UsageReportWorker{
		BaseWorker: base,
		repo:       repo,
		window:     window,
		now:        time.Now,
	}
}

func (w *UsageReportWorker) Run(ctx context.Context) error {
	since := w.now().Add(-w.window)

	summaries, err := w.repo.Summarize(ctx, "", since)
	if err != nil {
		return errors.Wrap(err, "summarize tool usage")
	}

	metrics.ResetToolUsageWindow()
	var calls, failures uint64
	for _, s := range summaries {
		metrics.SetToolUsageWindow(s.ToolName, s.Tier, s.CallCount)
		calls += s.CallCount
		failures += s.ErrorCount
	}
	w.lastMu.Lock()
	w.last = summaries
	w.lastMu.Unlock()

	w.Log().Infow("Tool usage report",
		"window", w.window,
		"tools", len(summaries),
		"calls", calls,
		"errors", failures,
	)
	return nil
}

// Last returns the most recent report
func (w *UsageReportWorker) Last() []stats.ToolUsageSummary {
	w.lastMu.Lock()
	defer w.lastMu.Unlock()
	return w.last
}
