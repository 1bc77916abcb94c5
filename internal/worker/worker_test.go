package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func Test_Worker_ExecutesTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var handled []int

	w := NewWorker(slog.Default(), func(_ context.Context, task *testTask) {
		mu.Lock()
		defer mu.Unlock()

		handled = append(handled, task.ID)
	}, WorkerOptions{})

	// Tasks queued before start are kept
	require.NoError(t, w.Enqueue(&testTask{ID: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.NoError(t, w.Enqueue(&testTask{ID: 2}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(handled) == 2
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, w.WaitForCompletion())

	require.ErrorIs(t, w.Enqueue(&testTask{ID: 3}), ErrWorkerStopped)
}

func Test_Worker_MaxParallelTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	var running, maxRunning int32
	release := make(chan struct{})

	w := NewWorker(slog.Default(), func(_ context.Context, task *testTask) {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}

		<-release
		atomic.AddInt32(&running, -1)
	}, WorkerOptions{MaxParallelTasks: 2})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Enqueue(&testTask{ID: i}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&running) == 2
	}, time.Second, time.Millisecond)

	// The dispatcher holds one task while waiting for a slot, the others stay queued
	require.Eventually(t, func() bool {
		return w.QueueSize() == 2
	}, time.Second, time.Millisecond)
	require.Equal(t, int32(2), atomic.LoadInt32(&running))

	close(release)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&running) == 0 && w.QueueSize() == 0
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, w.WaitForCompletion())

	require.Equal(t, int32(2), atomic.LoadInt32(&maxRunning))
}

func Test_Worker_RunningTasksCompleteAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	var completed atomic.Bool

	w := NewWorker(slog.Default(), func(ctx context.Context, task *testTask) {
		close(started)
		time.Sleep(20 * time.Millisecond)

		// Tasks run on their own context
		if ctx.Err() == nil {
			completed.Store(true)
		}
	}, WorkerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Enqueue(&testTask{ID: 1}))

	<-started
	cancel()

	require.NoError(t, w.WaitForCompletion())
	require.True(t, completed.Load())
}
