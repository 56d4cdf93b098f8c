package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

type mockWorker struct {
	*BaseWorker
	runs    int32
	runFunc func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{BaseWorker: NewBaseWorker(name, interval, enabled, logger.Nop())}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runs, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) Runs() int {
	return int(atomic.LoadInt32(&m.runs))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	worker := newMockWorker("ticker", 50*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	assert.Eventually(t, func() bool { return worker.Runs() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())
	assert.GreaterOrEqual(t, worker.Health().RunCount, int64(2))
}

func TestScheduler_DisabledWorkerNeverRuns(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	enabled := newMockWorker("enabled", 20*time.Millisecond, true)
	disabled := newMockWorker("disabled", 20*time.Millisecond, false)
	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return enabled.Runs() > 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Equal(t, 0, disabled.Runs())
}

func TestScheduler_RecordsErrorsAndPanics(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())

	failing := newMockWorker("failing", time.Hour, true)
	failing.runFunc = func(context.Context) error { return errors.ErrUnavailable }
	panicking := newMockWorker("panicking", time.Hour, true)
	panicking.runFunc = func(context.Context) error { panic("boom") }

	scheduler.RegisterWorker(failing)
	scheduler.RegisterWorker(panicking)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return failing.Health().ErrorCount == 1 && panicking.Health().ErrorCount == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.ErrorIs(t, failing.Health().LastError, errors.ErrUnavailable)
	assert.Contains(t, panicking.Health().LastError.Error(), "boom")
}

func TestScheduler_StartTwiceAndStopUnstarted(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	assert.Error(t, scheduler.Stop())

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))

	late := newMockWorker("late", time.Second, true)
	scheduler.RegisterWorker(late)
	assert.Empty(t, scheduler.Workers())

	require.NoError(t, scheduler.Stop())
}

func TestScheduler_StopTimeout(t *testing.T) {
	scheduler := NewScheduler(logger.Nop())
	scheduler.stopTimeout = 20 * time.Millisecond

	release := make(chan struct{})
	stuck := newMockWorker("stuck", time.Hour, true)
	stuck.runFunc = func(context.Context) error {
		<-release
		return nil
	}
	scheduler.RegisterWorker(stuck)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return stuck.Runs() == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, scheduler.Stop(), errors.ErrTimeout)
	close(release)
}
