package tester

import (
	"context"
	"errors"
	"sync"

	"github.com/cschleiden/go-wfmc/process"
)

// WorkItem records its start arguments. Tests complete it explicitly with Complete.
type WorkItem struct {
	process.BaseWorkItem

	Participant process.Participant
	Application string

	// StartErr, when set, is returned from Start.
	StartErr error

	mu      sync.Mutex
	started bool
	args    []any
}

var _ process.WorkItem = (*WorkItem)(nil)

func (w *WorkItem) Start(_ context.Context, args ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.StartErr != nil {
		return w.StartErr
	}

	if w.started {
		return errors.New("work item started twice")
	}

	w.started = true
	w.args = args

	return nil
}

func (w *WorkItem) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.started
}

func (w *WorkItem) Args() []any {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.args
}

// Activity returns the activity the work item was dispatched for.
func (w *WorkItem) Activity() *process.Activity {
	return w.Participant.Activity()
}

// Complete reports the work item as finished with the given output values.
func (w *WorkItem) Complete(ctx context.Context, results ...any) error {
	return w.Activity().WorkItemFinished(ctx, w, results...)
}
