package worker

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-wfmc/process"
)

// WorkItem runs an application on the worker. Starting it only queues the execution; the results
// are delivered to the process through the engine.
type WorkItem struct {
	process.BaseWorkItem

	worker      *Worker
	participant process.Participant
	application string
	fn          any
}

var _ process.WorkItem = (*WorkItem)(nil)

func (wi *WorkItem) Application() string {
	return wi.application
}

func (wi *WorkItem) Participant() process.Participant {
	return wi.participant
}

func (wi *WorkItem) Start(ctx context.Context, args ...any) error {
	a := wi.participant.Activity()

	t := &task{
		instanceID:  a.Process().Instance().InstanceID,
		activityID:  a.ID(),
		workItemID:  wi.ID(),
		application: wi.application,
		fn:          wi.fn,
		args:        append([]any(nil), args...),
	}

	if err := wi.worker.enqueue(ctx, t); err != nil {
		return fmt.Errorf("queueing application %q: %w", wi.application, err)
	}

	return nil
}
