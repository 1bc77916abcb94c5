package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrWorkerStopped = errors.New("worker stopped")

// TaskHandler executes a single task.
type TaskHandler[Task any] func(ctx context.Context, task *Task)

type WorkerOptions struct {
	// MaxParallelTasks limits the number of tasks executed at the same time. 0 means no limit.
	MaxParallelTasks int
}

// Worker executes queued tasks on a pool of goroutines. Tasks can be queued before the worker is
// started; queuing never blocks.
type Worker[Task any] struct {
	options WorkerOptions

	handle TaskHandler[Task]
	queue  *workQueue[Task]

	logger *slog.Logger

	mu      sync.Mutex
	stopped bool

	dispatcherDone chan struct{}
}

func NewWorker[Task any](logger *slog.Logger, handle TaskHandler[Task], options WorkerOptions) *Worker[Task] {
	return &Worker[Task]{
		options:        options,
		handle:         handle,
		queue:          newWorkQueue[Task](options.MaxParallelTasks),
		logger:         logger,
		dispatcherDone: make(chan struct{}),
	}
}

// Start starts dispatching tasks until ctx is canceled.
func (w *Worker[Task]) Start(ctx context.Context) error {
	go w.dispatcher(ctx)

	return nil
}

// Enqueue queues a task for execution. It returns ErrWorkerStopped once the worker was stopped.
func (w *Worker[Task]) Enqueue(task *Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWorkerStopped
	}

	w.queue.add(task)

	return nil
}

// QueueSize returns the number of tasks waiting for execution.
func (w *Worker[Task]) QueueSize() int {
	return w.queue.size()
}

// WaitForCompletion waits for the dispatcher to stop and all running tasks to complete.
func (w *Worker[Task]) WaitForCompletion() error {
	<-w.dispatcherDone

	return nil
}

func (w *Worker[Task]) dispatcher(ctx context.Context) {
	var wg sync.WaitGroup

	for {
		t, err := w.queue.take(ctx)
		if err != nil {
			break
		}

		// If limited max tasks, wait for a slot to open up
		if err := w.queue.reserve(ctx); err != nil {
			w.queue.add(t)
			break
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer w.queue.release()

			// Create new context to allow tasks to complete when root context is canceled
			taskCtx := context.Background()
			w.handle(taskCtx, t)
		}()
	}

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	if dropped := w.queue.drain(); len(dropped) > 0 {
		w.logger.Warn("worker stopped with queued tasks", "tasks", len(dropped))
	}

	wg.Wait()

	close(w.dispatcherDone)
}
