package clickhouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/pkg/logger"
)

type sink struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (s *sink) flush(_ context.Context, batch []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *sink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func newWriter(s *sink, size int, age time.Duration) *BatchWriter[int] {
	return NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    s.flush,
		TableName:    "tool_usage",
		MaxBatchSize: size,
		MaxAge:       age,
		Log:          logger.Nop(),
	})
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	s := &sink{}
	bw := newWriter(s, 3, time.Hour)
	ctx := context.Background()

	require.NoError(t, bw.Add(ctx, 1, 2))
	assert.Empty(t, s.batches)
	require.NoError(t, bw.Add(ctx, 3))

	require.Len(t, s.batches, 1)
	assert.Equal(t, []int{1, 2, 3}, s.batches[0])
	assert.Zero(t, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	s := &sink{}
	bw := newWriter(s, 100, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, 1, 2))
	assert.Eventually(t, func() bool { return s.total() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, bw.Stop(context.Background()))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	s := &sink{}
	bw := newWriter(s, 100, time.Hour)
	bw.Start(context.Background())

	require.NoError(t, bw.Add(context.Background(), 1, 2, 3))

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bw.Stop(stopCtx))
	assert.Equal(t, 3, s.total())
}

func TestBatchWriter_ContextCancelFlushes(t *testing.T) {
	s := &sink{}
	bw := newWriter(s, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	bw.Start(ctx)
	require.NoError(t, bw.Add(ctx, 7))
	cancel()

	assert.Eventually(t, func() bool { return s.total() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBatchWriter_StopWithoutStartFlushes(t *testing.T) {
	s := &sink{}
	bw := newWriter(s, 100, time.Hour)

	require.NoError(t, bw.Add(context.Background(), 1))
	require.NoError(t, bw.Stop(context.Background()))
	assert.Equal(t, 1, s.total())
}

func TestBatchWriter_FailedBatchIsDropped(t *testing.T) {
	s := &sink{err: errors.New("clickhouse down")}
	bw := newWriter(s, 2, time.Hour)

	err := bw.Add(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Zero(t, bw.BufferSize())
}

func TestBatchWriter_ConcurrentAdds(t *testing.T) {
	s := &sink{}
	bw := newWriter(s, 10, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = bw.Add(ctx, n)
		}(i)
	}
	wg.Wait()

	require.NoError(t, bw.Stop(context.Background()))
	assert.Equal(t, 50, s.total())
}
