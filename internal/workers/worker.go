package workers

import (
	"context"
	"sync"
	"time"

	"tiergate/pkg/logger"
)

// Worker is a periodic background job
type Worker interface {
	Name() string

	// Run executes one iteration and returns
	Run(ctx context.Context) error

	Interval() time.Duration
	Enabled() bool
}

// HealthRecorder is implemented by workers that keep run statistics
type HealthRecorder interface {
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
}

// WorkerHealth is a snapshot of a worker's run statistics
type WorkerHealth struct {
	LastRun    time.Time
	LastError  error
	RunCount   int64
	ErrorCount int64
}

// BaseWorker carries name, interval, enabled flag and health for embedding
type BaseWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	log      *logger.Logger

	mu     sync.RWMutex
	health WorkerHealth
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(name string, interval time.Duration, enabled bool, log *logger.Logger) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      log.With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Log() *logger.Logger     { return w.log }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// Health returns a copy of the run statistics
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.health
}

// RecordRun records a successful run
func (w *BaseWorker) RecordRun(time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.LastRun = time.Now()
	w.health.RunCount++
	w.health.LastError = nil
}

// RecordError records a failed run
func (w *BaseWorker) RecordError(err error, _ time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.LastRun = time.Now()
	w.health.RunCount++
	w.health.ErrorCount++
	w.health.LastError = err
}
