package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testTask is a simple task struct for testing
type testTask struct {
	ID   int
	Data string
}

func TestNewWorkQueue(t *testing.T) {
	t.Run("unlimited parallelism", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)

		require.NotNil(t, wq)
		require.Nil(t, wq.slots) // No slots channel when maxParallelTasks is 0
	})

	t.Run("limited parallelism", func(t *testing.T) {
		maxTasks := 5
		wq := newWorkQueue[testTask](maxTasks)

		require.NotNil(t, wq.slots)
		require.Equal(t, maxTasks, cap(wq.slots))
	})

	t.Run("negative max parallel tasks treated as unlimited", func(t *testing.T) {
		wq := newWorkQueue[testTask](-1)

		require.Nil(t, wq.slots)
	})
}

func TestWorkQueue_Reserve(t *testing.T) {
	t.Run("unlimited parallelism - no reservation needed", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)

		require.NoError(t, wq.reserve(context.Background()))
	})

	t.Run("limited parallelism - reservation blocks when slots full", func(t *testing.T) {
		wq := newWorkQueue[testTask](1)

		// First reservation should succeed immediately
		require.NoError(t, wq.reserve(context.Background()))

		// Second reservation should block
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := wq.reserve(ctx)
		require.Equal(t, context.DeadlineExceeded, err)
	})

	t.Run("release frees slot", func(t *testing.T) {
		wq := newWorkQueue[testTask](1)
		ctx := context.Background()

		require.NoError(t, wq.reserve(ctx))
		wq.release()
		require.NoError(t, wq.reserve(ctx))
	})
}

func TestWorkQueue_AddTake(t *testing.T) {
	t.Run("add does not block", func(t *testing.T) {
		wq := newWorkQueue[testTask](1)

		for i := 0; i < 100; i++ {
			wq.add(&testTask{ID: i})
		}

		require.Equal(t, 100, wq.size())
	})

	t.Run("take returns tasks in order", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)
		ctx := context.Background()

		wq.add(&testTask{ID: 1})
		wq.add(&testTask{ID: 2})

		task, err := wq.take(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, task.ID)

		task, err = wq.take(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, task.ID)

		require.Zero(t, wq.size())
	})

	t.Run("take waits for add", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)

		go func() {
			time.Sleep(10 * time.Millisecond)
			wq.add(&testTask{ID: 42, Data: "late"})
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		task, err := wq.take(ctx)
		require.NoError(t, err)
		require.Equal(t, 42, task.ID)
	})

	t.Run("take context cancellation", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := wq.take(ctx)
		require.Equal(t, context.Canceled, err)
	})

	t.Run("concurrent adds with reader", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)
		ctx := context.Background()

		taskCount := 10
		var wg sync.WaitGroup

		for i := 0; i < taskCount; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				wq.add(&testTask{ID: id, Data: "concurrent"})
			}(i)
		}

		received := make(map[int]bool)
		for i := 0; i < taskCount; i++ {
			task, err := wq.take(ctx)
			require.NoError(t, err)
			received[task.ID] = true
		}

		wg.Wait()
		require.Len(t, received, taskCount)
	})

	t.Run("drain", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)
		wq.add(&testTask{ID: 1})
		wq.add(&testTask{ID: 2})

		require.Len(t, wq.drain(), 2)
		require.Zero(t, wq.size())
	})
}
