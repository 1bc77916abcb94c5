package tester

import (
	"context"
	"sync"

	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/cschleiden/go-wfmc/registry"
	"github.com/google/uuid"
)

// Tester wires a registry, a runtime and an event recorder for exercising process definitions
// in tests. Applications registered with RegisterApplication create recording work items.
type Tester struct {
	Registry *registry.Registry
	Recorder *Recorder
	Runtime  *process.Runtime

	mu    sync.Mutex
	items []*WorkItem
}

// New creates a tester. The recorder is installed as the event sink; passing process.WithSink
// replaces it.
func New(opts ...process.Option) *Tester {
	t := &Tester{
		Registry: registry.New(),
		Recorder: NewRecorder(),
	}

	// Default performer for activities without one
	if err := t.Registry.RegisterParticipant(".", process.NewParticipant); err != nil {
		panic(err)
	}

	opts = append([]process.Option{process.WithSink(t.Recorder)}, opts...)
	t.Runtime = process.NewRuntime(t.Registry, t.Registry, opts...)

	return t
}

func (t *Tester) Register(pd *definition.ProcessDefinition) error {
	return t.Registry.RegisterDefinition(pd)
}

// RegisterApplication registers a recording work item under the unqualified name of the
// application.
func (t *Tester) RegisterApplication(application string) error {
	return t.RegisterWorkItem("."+application, application)
}

// RegisterWorkItem registers a recording work item under an exact resolver name.
func (t *Tester) RegisterWorkItem(name, application string) error {
	return t.Registry.RegisterWorkItem(name, func(p process.Participant) process.WorkItem {
		wi := &WorkItem{
			Participant: p,
			Application: application,
		}

		t.mu.Lock()
		t.items = append(t.items, wi)
		t.mu.Unlock()

		return wi
	})
}

// WorkItems returns all work items created so far, in creation order.
func (t *Tester) WorkItems() []*WorkItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*WorkItem(nil), t.items...)
}

// Pending returns the created work items that were started and whose activity still waits
// for them.
func (t *Tester) Pending() []*WorkItem {
	var pending []*WorkItem
	for _, wi := range t.WorkItems() {
		if !wi.Started() {
			continue
		}

		if h, ok := wi.Activity().WorkItem(wi.ID()); ok && h == process.WorkItem(wi) {
			pending = append(pending, wi)
		}
	}

	return pending
}

// NewProcess creates a process instance with a random id.
func (t *Tester) NewProcess(ctx context.Context, definitionID string, receiver process.ResultReceiver) (*process.Process, error) {
	return t.Runtime.NewProcess(ctx, core.NewProcessInstance(uuid.NewString(), definitionID), receiver)
}
