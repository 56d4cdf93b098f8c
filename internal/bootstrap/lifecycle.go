package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "tiergate/internal/adapters/clickhouse"
	"tiergate/internal/adapters/kafka"
	pgclient "tiergate/internal/adapters/postgres"
	redisclient "tiergate/internal/adapters/redis"
	"tiergate/internal/api"
	chrepo "tiergate/internal/repository/clickhouse"
	"tiergate/internal/workers"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
	httpTimeout     time.Duration
	drainTimeout    time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
		httpTimeout:     30 * time.Second, // a running turn may still be streaming
		drainTimeout:    10 * time.Second,
	}
}

// ShutdownTargets are the components Shutdown closes. Any of them may be nil.
type ShutdownTargets struct {
	WG              *sync.WaitGroup
	HTTPServer      *api.Server
	WorkerScheduler *workers.Scheduler
	Consumers       map[string]*kafka.Consumer
	KafkaProducer   *kafka.Producer
	UsageBuffer     *chrepo.BufferedStatsRepository
	PG              *pgclient.Client
	CH              *chclient.Client
	Redis           *redisclient.Client
	ErrorTracker    errors.Tracker
}

// Shutdown performs coordinated cleanup in order:
// 1. No new requests accepted, running turns finish
// 2. Workers stop
// 3. Kafka consumers unblock before waiting for goroutines
// 4. Producer closes after the last turn could publish a plan event
// 5. Buffered tool usage, errors and logs flushed
// 6. Stores last, turns and workers use them until the end
func (l *Lifecycle) Shutdown(t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/7] Stopping HTTP server...")
	if t.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, l.httpTimeout)
		if err := t.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		} else {
			log.Info("✓ HTTP server stopped")
		}
		httpCancel()
	}

	log.Info("[2/7] Stopping background workers...")
	if t.WorkerScheduler != nil && t.WorkerScheduler.IsRunning() {
		if err := t.WorkerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	log.Info("[3/7] Closing Kafka consumers...")
	l.closeKafkaConsumers(t.Consumers, log)

	log.Info("[4/7] Waiting for goroutines...")
	if t.WG != nil {
		l.waitForGoroutines(t.WG, l.drainTimeout, log)
	}

	log.Info("[5/7] Closing Kafka producer...")
	if t.KafkaProducer != nil {
		if err := t.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	log.Info("[6/7] Flushing tool usage, error tracker and logs...")
	if t.UsageBuffer != nil {
		flushCtx, flushCancel := context.WithTimeout(shutdownCtx, l.drainTimeout)
		if err := t.UsageBuffer.Stop(flushCtx); err != nil {
			log.Errorw("Tool usage flush failed", "error", err)
		}
		flushCancel()
	}
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)
	_ = logger.Sync()

	log.Info("[7/7] Closing database connections...")
	l.closeDatabases(t.PG, t.CH, t.Redis, log)

	log.Info("✅ Graceful shutdown complete")
}

func (l *Lifecycle) closeKafkaConsumers(consumers map[string]*kafka.Consumer, log *logger.Logger) {
	for name, consumer := range consumers {
		if consumer == nil {
			continue
		}
		if err := consumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "consumer", name, "error", err)
		}
	}
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeDatabases(pg *pgclient.Client, ch *chclient.Client, rdb *redisclient.Client, log *logger.Logger) {
	var dbErrors []error

	if pg != nil {
		if err := pg.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "postgres"))
		}
	}
	if ch != nil {
		if err := ch.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if err := errors.Join(dbErrors...); err != nil {
		log.Errorw("Database close errors", "error", err)
		return
	}
	log.Info("✓ Database connections closed")
}
