package process

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/log"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Process is one live execution of a process definition.
//
// All state changes of a process happen under a single lock. Starting a process or finishing a
// work item runs the resulting cascade of transitions, activity starts and finishes to
// completion before the lock is released.
type Process struct {
	mu sync.Mutex

	rt       *Runtime
	instance *core.ProcessInstance
	receiver ResultReceiver

	startTransition *definition.TransitionDefinition

	workflowData    *core.Data
	applicationData *core.Data

	activities     map[int]*Activity
	nextActivityID int

	state core.ProcessState

	// finished holds the results of a process that finished during the current cascade. They are
	// delivered once the lock is released.
	finished *finished
}

type finished struct {
	results []any
}

func newProcess(rt *Runtime, instance *core.ProcessInstance, start *definition.TransitionDefinition, receiver ResultReceiver) *Process {
	return &Process{
		rt:              rt,
		instance:        instance,
		receiver:        receiver,
		startTransition: start,
		workflowData:    core.NewData(),
		applicationData: core.NewData(),
		activities:      make(map[int]*Activity),
		state:           core.ProcessStateCreated,
	}
}

func (p *Process) Instance() *core.ProcessInstance {
	return p.instance
}

// WorkflowData returns the workflow-relevant data used for conditions and parameter passing.
func (p *Process) WorkflowData() *core.Data {
	return p.workflowData
}

// ApplicationData returns the data shared by the process's work items.
func (p *Process) ApplicationData() *core.Data {
	return p.applicationData
}

func (p *Process) State() core.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Activity returns the live activity with the given id.
func (p *Process) Activity(id int) (*Activity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.activities[id]
	return a, ok
}

// Activities returns the live activities ordered by id.
func (p *Process) Activities() []*Activity {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sortedActivities()
}

func (p *Process) sortedActivities() []*Activity {
	ids := make([]int, 0, len(p.activities))
	for id := range p.activities {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	activities := make([]*Activity, 0, len(ids))
	for _, id := range ids {
		activities = append(activities, p.activities[id])
	}

	return activities
}

// Start sets the input parameters of the process definition, in order, from args and takes the
// start transition.
func (p *Process) Start(ctx context.Context, args ...any) (err error) {
	ctx, span := p.rt.tracer.Start(ctx, "Process.Start", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, p.instance.InstanceID),
		attribute.String(tracing.ProcessDefinitionID, p.instance.DefinitionID),
	))
	defer func() {
		tracing.WithSpanError(span, err)
		span.End()
	}()

	return p.locked(ctx, func() error {
		return p.start(ctx, args)
	})
}

func (p *Process) start(ctx context.Context, args []any) error {
	if p.state != core.ProcessStateCreated || len(p.activities) > 0 {
		return ErrAlreadyStarted
	}

	pd, err := p.rt.definition(ctx, p.instance.DefinitionID)
	if err != nil {
		return err
	}

	var inputs []definition.Parameter
	for _, parameter := range pd.Parameters() {
		if parameter.Input {
			inputs = append(inputs, parameter)
		}
	}

	if len(inputs) != len(args) {
		return &ArityError{What: "arguments", Expected: len(inputs), Got: len(args)}
	}

	for i, parameter := range inputs {
		p.workflowData.Set(parameter.Name, args[i])
	}

	p.state = core.ProcessStateRunning

	p.rt.logger.DebugContext(ctx, "starting process",
		log.InstanceIDKey, p.instance.InstanceID, log.DefinitionIDKey, p.instance.DefinitionID)
	p.rt.metrics.Counter(metrickeys.ProcessStarted, p.tags(), 1)
	p.notify(ctx, ProcessStarted{Process: p})

	return p.transition(ctx, nil, []*definition.TransitionDefinition{p.startTransition})
}

// CompleteWorkItem delivers the results of a work item to the live activity with the given id.
func (p *Process) CompleteWorkItem(ctx context.Context, activityID, workItemID int, results ...any) error {
	a, ok := p.Activity(activityID)
	if !ok {
		return fmt.Errorf("activity %d of %v: %w", activityID, p, ErrUnknownActivity)
	}

	return a.completeWorkItem(ctx, workItemID, results...)
}

// Results returns the values of the output parameters of the process definition, in order.
// Output parameters that were never set are reported as nil.
func (p *Process) Results(ctx context.Context) ([]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.results(ctx)
}

func (p *Process) results(ctx context.Context) ([]any, error) {
	pd, err := p.rt.definition(ctx, p.instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	var results []any
	for _, parameter := range pd.Parameters() {
		if parameter.Output {
			v, _ := p.workflowData.Get(parameter.Name)
			results = append(results, v)
		}
	}

	return results, nil
}

func (p *Process) transition(ctx context.Context, from *Activity, transitions []*definition.TransitionDefinition) error {
	if len(transitions) > 0 {
		pd, err := p.rt.definition(ctx, p.instance.DefinitionID)
		if err != nil {
			return err
		}

		for _, t := range transitions {
			ad, ok := pd.Activity(t.To)
			if !ok {
				return fmt.Errorf("transition %v targets activity %q: %w", t, t.To, ErrUnknownActivity)
			}

			var next *Activity
			if ad.AndJoin {
				// An and-join is instantiated once, all incoming branches share it.
				for _, a := range p.sortedActivities() {
					if a.definitionID == t.To {
						next = a
						break
					}
				}
			}

			if next == nil {
				p.nextActivityID++
				next = newActivity(p, p.nextActivityID, t.To)
			}

			p.notify(ctx, Transition{From: from, To: next})
			p.activities[next.id] = next

			if err := next.start(ctx, t); err != nil {
				return err
			}
		}
	}

	if from != nil {
		delete(p.activities, from.id)

		if len(p.activities) == 0 {
			return p.finish(ctx)
		}
	}

	return nil
}

func (p *Process) finish(ctx context.Context) error {
	p.state = core.ProcessStateFinished

	f := &finished{}
	if p.receiver != nil {
		results, err := p.results(ctx)
		if err != nil {
			return err
		}

		f.results = results
	}

	p.finished = f

	return nil
}

// locked runs fn under the process lock. When fn finished the process, the results are handed
// to the receiver after the lock is released, so the receiver may call back into the process.
func (p *Process) locked(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	err := fn()
	f := p.finished
	p.finished = nil
	p.mu.Unlock()

	if f == nil {
		return err
	}

	if derr := p.deliver(ctx, f); err == nil {
		err = derr
	}

	return err
}

func (p *Process) deliver(ctx context.Context, f *finished) error {
	var receiverErr error
	if p.receiver != nil {
		if err := p.receiver.ProcessFinished(ctx, p, f.results...); err != nil {
			receiverErr = fmt.Errorf("delivering results of %v: %w", p, err)
		}
	}

	p.rt.logger.DebugContext(ctx, "process finished",
		log.InstanceIDKey, p.instance.InstanceID, log.DefinitionIDKey, p.instance.DefinitionID)
	p.rt.metrics.Counter(metrickeys.ProcessFinished, p.tags(), 1)
	p.notify(ctx, ProcessFinished{Process: p})

	return receiverErr
}

func (p *Process) notify(ctx context.Context, e Event) {
	p.rt.sink.Notify(ctx, e)
}

func (p *Process) tags() metrics.Tags {
	return metrics.Tags{metrickeys.DefinitionID: p.instance.DefinitionID}
}

func (p *Process) String() string {
	return fmt.Sprintf("Process(%q)", p.instance.DefinitionID)
}
