package clickhouse

import (
	"context"
	"sync"
	"time"

	"tiergate/pkg/logger"
)

// FlushFunc writes one batch, usually as a single INSERT
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// BatchWriter buffers rows in memory and hands them to a FlushFunc when the
// buffer is full, on a timer, and on Stop. ClickHouse handles one large
// insert far better than many single row ones.
type BatchWriter[T any] struct {
	flush FlushFunc[T]
	table string
	log   *logger.Logger

	maxBatchSize int
	maxAge       time.Duration

	mu        sync.Mutex
	buffer    []T
	lastFlush time.Time
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// BatchWriterConfig contains configuration for BatchWriter
type BatchWriterConfig[T any] struct {
	FlushFunc    FlushFunc[T]
	TableName    string
	MaxBatchSize int           // default 500
	MaxAge       time.Duration // default 5s
	Log          *logger.Logger
}

// NewBatchWriter creates a stopped batch writer
func NewBatchWriter[T any](cfg BatchWriterConfig[T]) *BatchWriter[T] {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logger.Get()
	}

	return &BatchWriter[T]{
		flush:        cfg.FlushFunc,
		table:        cfg.TableName,
		log:          cfg.Log.With("component", "batch_writer", "table", cfg.TableName),
		maxBatchSize: cfg.MaxBatchSize,
		maxAge:       cfg.MaxAge,
		buffer:       make([]T, 0, cfg.MaxBatchSize),
		lastFlush:    time.Now(),
	}
}

// Start begins the periodic flush loop. The loop flushes once more and exits
// when ctx is cancelled or Stop is called.
func (bw *BatchWriter[T]) Start(ctx context.Context) {
	bw.mu.Lock()
	if bw.running {
		bw.mu.Unlock()
		return
	}
	bw.running = true
	bw.stopCh = make(chan struct{})
	stopCh := bw.stopCh
	bw.mu.Unlock()

	bw.wg.Add(1)
	go bw.flushLoop(ctx, stopCh)

	bw.log.Infow("Batch writer started", "max_batch_size", bw.maxBatchSize, "max_age", bw.maxAge)
}

// Add buffers item and flushes synchronously when the buffer is full
func (bw *BatchWriter[T]) Add(ctx context.Context, items ...T) error {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, items...)
	full := len(bw.buffer) >= bw.maxBatchSize
	bw.mu.Unlock()

	if full {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush writes everything buffered so far. A failed batch is dropped.
func (bw *BatchWriter[T]) Flush(ctx context.Context) error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	batch := bw.buffer
	bw.buffer = make([]T, 0, bw.maxBatchSize)
	bw.lastFlush = time.Now()
	bw.mu.Unlock()

	// outside the lock so Add never waits on ClickHouse
	start := time.Now()
	if err := bw.flush(ctx, batch); err != nil {
		bw.log.Errorw("Batch flush failed", "rows", len(batch), "duration", time.Since(start), "error", err)
		return err
	}

	bw.log.Debugw("Batch flushed", "rows", len(batch), "duration", time.Since(start))
	return nil
}

func (bw *BatchWriter[T]) flushLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxAge)
	defer ticker.Stop()

	final := func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = bw.Flush(flushCtx)
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-stopCh:
			final()
			return
		case <-ticker.C:
			_ = bw.Flush(ctx)
		}
	}
}

// Stop flushes remaining rows and waits for the loop, bounded by ctx
func (bw *BatchWriter[T]) Stop(ctx context.Context) error {
	bw.mu.Lock()
	if !bw.running {
		bw.mu.Unlock()
		return bw.Flush(ctx)
	}
	bw.running = false
	close(bw.stopCh)
	bw.mu.Unlock()

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		bw.log.Info("Batch writer stopped")
		return nil
	case <-ctx.Done():
		bw.log.Warn("Batch writer stop timed out")
		return ctx.Err()
	}
}

// BufferSize returns the number of rows waiting for a flush
func (bw *BatchWriter[T]) BufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}
