package worker

import (
	"context"
	"sync"
)

// workQueue buffers tasks without bounds so adding never blocks, and limits the number of tasks
// executing in parallel through slots.
type workQueue[Task any] struct {
	mu      sync.Mutex
	pending []*Task

	// notify has a capacity of one and signals that pending is not empty
	notify chan struct{}

	slots chan struct{}
}

func newWorkQueue[Task any](maxParallelTasks int) *workQueue[Task] {
	var slots chan struct{}
	if maxParallelTasks > 0 {
		slots = make(chan struct{}, maxParallelTasks)
	}

	return &workQueue[Task]{
		notify: make(chan struct{}, 1),
		slots:  slots,
	}
}

func (w *workQueue[Task]) reserve(ctx context.Context) error {
	if w.slots == nil {
		return nil // No limit on parallel tasks, no reservation needed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.slots <- struct{}{}:
		return nil
	}
}

func (w *workQueue[Task]) release() {
	if w.slots == nil {
		return
	}

	<-w.slots
}

// add appends a task to the queue. It never blocks.
func (w *workQueue[Task]) add(task *Task) {
	w.mu.Lock()
	w.pending = append(w.pending, task)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// take removes the oldest task from the queue, waiting for one if the queue is empty.
func (w *workQueue[Task]) take(ctx context.Context) (*Task, error) {
	for {
		w.mu.Lock()
		if len(w.pending) > 0 {
			task := w.pending[0]
			w.pending[0] = nil
			w.pending = w.pending[1:]
			w.mu.Unlock()

			return task, nil
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.notify:
		}
	}
}

// drain removes and returns all queued tasks.
func (w *workQueue[Task]) drain() []*Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	tasks := w.pending
	w.pending = nil

	return tasks
}

func (w *workQueue[Task]) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.pending)
}
