package bootstrap

import (
	"tiergate/internal/consumers"
	"tiergate/internal/workers"
)

// ========================================
// Phase 8: Background Processing
// ========================================

// MustInitBackground registers workers and Kafka consumers. Both depend on
// optional stores, so a bare deployment ends up with an empty scheduler.
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = provideWorkers(c)

	if c.Adapters.ProfileSyncReader != nil {
		c.Background.ProfileSync = consumers.NewProfileSyncConsumer(
			c.Adapters.ProfileSyncReader,
			c.Services.Profile,
			c.Log,
		)
	}

	c.Log.Infow("✓ Background processing initialized",
		"workers", len(c.Background.WorkerScheduler.Workers()),
		"profile_sync", c.Background.ProfileSync != nil,
	)
}

// provideWorkers builds the scheduler with every worker the configured stores allow
func provideWorkers(c *Container) *workers.Scheduler {
	scheduler := workers.NewScheduler(c.Log)
	cfg := c.Config.Workers

	if c.Repos.Stats != nil {
		scheduler.RegisterWorker(workers.NewUsageReportWorker(
			workers.NewBaseWorker("usage_report", cfg.UsageReportInterval, cfg.UsageReportEnabled, c.Log),
			c.Repos.Stats,
			cfg.UsageReportWindow,
		))
	}

	return scheduler
}
