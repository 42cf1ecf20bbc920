package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"showtime-scraper/internal/metrics"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func waitFor(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		require.Fail(t, msg)
	}
}

func TestPoolRunsTasks(t *testing.T) {
	done := make(chan struct{}, 2)
	var seen sync.Map
	pool := NewPool(func(_ context.Context, task Task) error {
		seen.Store(task.String(), true)
		done <- struct{}{}
		return nil
	}, PoolOptions{Workers: 2, Logger: quietLogger(), Metrics: metrics.New()})
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(SweepTask("multikino")))
	require.NoError(t, pool.Enqueue(PruneTask()))
	waitFor(t, done, "first task did not run")
	waitFor(t, done, "second task did not run")

	_, ok := seen.Load("sweep(multikino)")
	assert.True(t, ok)
	_, ok = seen.Load("prune")
	assert.True(t, ok)
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})
	pool := NewPool(func(context.Context, Task) error {
		if attempts.Add(1) < 3 {
			return errors.New("page did not load")
		}
		close(done)
		return nil
	}, PoolOptions{Retry: fastRetry(3), Logger: quietLogger()})
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(SweepTask("helios")))
	waitFor(t, done, "task never succeeded")
	assert.EqualValues(t, 3, attempts.Load())
}

func TestPoolGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	pool := NewPool(func(context.Context, Task) error {
		attempts.Add(1)
		return errors.New("still broken")
	}, PoolOptions{Retry: fastRetry(2), Logger: quietLogger()})
	pool.Start(context.Background())

	require.NoError(t, pool.Enqueue(SweepTask("helios")))
	require.Eventually(t, func() bool { return attempts.Load() == 3 }, waitTimeout, time.Millisecond)
	// the task slot frees up once the last attempt has been recorded
	require.Eventually(t, func() bool { return pool.Enqueue(SweepTask("helios")) == nil }, waitTimeout, time.Millisecond)
	pool.Stop()
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
}

func TestPoolDoesNotRetryPermanentErrors(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})
	pool := NewPool(func(context.Context, Task) error {
		attempts.Add(1)
		close(done)
		return Permanent(errors.New("unknown chain"))
	}, PoolOptions{Retry: fastRetry(5), Logger: quietLogger()})
	pool.Start(context.Background())

	require.NoError(t, pool.Enqueue(SweepTask("cinema-city")))
	waitFor(t, done, "task did not run")
	time.Sleep(20 * time.Millisecond)
	pool.Stop()
	assert.EqualValues(t, 1, attempts.Load())
}

func TestPoolRecoversFromPanics(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	pool := NewPool(func(_ context.Context, task Task) error {
		if calls.Add(1) == 1 {
			panic("driver crashed")
		}
		close(done)
		return nil
	}, PoolOptions{Retry: fastRetry(3), Logger: quietLogger()})
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(SweepTask("multikino")))
	require.Eventually(t, func() bool { return pool.Enqueue(SweepTask("helios")) == nil }, waitTimeout, time.Millisecond)
	waitFor(t, done, "worker did not survive the panic")
}

func TestPoolRejectsDuplicates(t *testing.T) {
	pool := NewPool(func(context.Context, Task) error { return nil }, PoolOptions{Logger: quietLogger()})
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(SweepTask("multikino")))
	assert.ErrorIs(t, pool.Enqueue(SweepTask("multikino")), ErrAlreadyQueued)
	assert.NoError(t, pool.Enqueue(SweepTask("helios")))
	assert.Equal(t, 2, pool.Pending())
}

func TestPoolFull(t *testing.T) {
	pool := NewPool(func(context.Context, Task) error { return nil }, PoolOptions{Capacity: 1, Logger: quietLogger()})
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(SweepTask("multikino")))
	assert.ErrorIs(t, pool.Enqueue(SweepTask("helios")), ErrQueueFull)
}

func TestPoolStopped(t *testing.T) {
	pool := NewPool(func(context.Context, Task) error { return nil }, PoolOptions{Logger: quietLogger()})
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.Enqueue(PruneTask()), ErrQueueStopped)
}

func TestPoolStopCancelsRunningTask(t *testing.T) {
	started := make(chan struct{})
	pool := NewPool(func(ctx context.Context, _ Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, PoolOptions{Retry: fastRetry(3), Logger: quietLogger()})
	pool.Start(context.Background())

	require.NoError(t, pool.Enqueue(SweepTask("multikino")))
	waitFor(t, started, "task did not start")

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()
	waitFor(t, stopped, "stop did not return")
}

func TestPoolRejectsInvalidTask(t *testing.T) {
	pool := NewPool(func(context.Context, Task) error { return nil }, PoolOptions{Logger: quietLogger()})
	defer pool.Stop()

	assert.Error(t, pool.Enqueue(Task{Kind: KindSweep}))
}
