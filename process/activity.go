package process

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/log"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Activity is one live instance of an activity definition within a process.
type Activity struct {
	id           int
	process      *Process
	definitionID string

	// incoming accumulates arrived transitions of an and-join.
	incoming []*definition.TransitionDefinition

	workItems map[int]*pendingWorkItem
}

type pendingWorkItem struct {
	item        WorkItem
	application string
	formal      []definition.Parameter
	actual      []string
}

func newActivity(p *Process, id int, definitionID string) *Activity {
	return &Activity{
		id:           id,
		process:      p,
		definitionID: definitionID,
		workItems:    make(map[int]*pendingWorkItem),
	}
}

// ID returns the id of the activity, unique within its process.
func (a *Activity) ID() int {
	return a.id
}

func (a *Activity) Process() *Process {
	return a.process
}

// DefinitionID returns the id of the activity definition this activity was created from.
func (a *Activity) DefinitionID() string {
	return a.definitionID
}

// Definition looks up the activity definition.
func (a *Activity) Definition(ctx context.Context) (*definition.ActivityDefinition, error) {
	pd, err := a.process.rt.definition(ctx, a.process.instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	ad, ok := pd.Activity(a.definitionID)
	if !ok {
		return nil, fmt.Errorf("activity definition %q of %v: %w", a.definitionID, pd, ErrUnknownActivity)
	}

	return ad, nil
}

// PendingWorkItems returns the ids of work items that have not finished yet, in order.
func (a *Activity) PendingWorkItems() []int {
	a.process.mu.Lock()
	defer a.process.mu.Unlock()

	return a.pendingIDs()
}

func (a *Activity) pendingIDs() []int {
	ids := make([]int, 0, len(a.workItems))
	for id := range a.workItems {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}

// WorkItem returns the handle of a pending work item.
func (a *Activity) WorkItem(id int) (WorkItem, bool) {
	a.process.mu.Lock()
	defer a.process.mu.Unlock()

	wi, ok := a.workItems[id]
	if !ok {
		return nil, false
	}

	return wi.item, true
}

// WorkItemFinished records the results of a work item. Results are positional values for the
// output parameters of the application, in formal parameter order.
func (a *Activity) WorkItemFinished(ctx context.Context, wi WorkItem, results ...any) error {
	if wi == nil {
		return fmt.Errorf("nil work item of %v: %w", a, ErrUnknownWorkItem)
	}

	return a.completeWorkItem(ctx, wi.ID(), results...)
}

func (a *Activity) completeWorkItem(ctx context.Context, id int, results ...any) (err error) {
	p := a.process

	ctx, span := p.rt.tracer.Start(ctx, "Activity.WorkItemFinished", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, p.instance.InstanceID),
		attribute.Int(tracing.ActivityID, a.id),
		attribute.String(tracing.ActivityDefinitionID, a.definitionID),
		attribute.Int(tracing.WorkItemID, id),
	))
	defer func() {
		tracing.WithSpanError(span, err)
		span.End()
	}()

	return p.locked(ctx, func() error {
		return a.workItemFinished(ctx, id, results)
	})
}

func (a *Activity) start(ctx context.Context, transition *definition.TransitionDefinition) error {
	ad, err := a.Definition(ctx)
	if err != nil {
		return err
	}

	if ad.AndJoin {
		for _, t := range a.incoming {
			if t == transition {
				return &ProcessError{
					Message:  fmt.Sprintf("repeated incoming transition %v while waiting for and completion", transition),
					Activity: a.String(),
				}
			}
		}

		a.incoming = append(a.incoming, transition)

		if len(a.incoming) < len(ad.Incoming) {
			// not enough incoming yet
			return nil
		}
	}

	a.process.rt.metrics.Counter(metrickeys.ActivityStarted, a.process.tags(), 1)
	a.process.notify(ctx, ActivityStarted{Activity: a})

	if len(ad.Applications) == 0 {
		return a.finish(ctx)
	}

	// All inputs are bound before the first work item is handed out
	args, err := a.inputs(ad)
	if err != nil {
		return err
	}

	if err := a.resolveWorkItems(ctx, ad); err != nil {
		return err
	}

	for _, id := range a.pendingIDs() {
		wi := a.workItems[id]

		a.process.rt.logger.DebugContext(ctx, "dispatching work item",
			log.InstanceIDKey, a.process.instance.InstanceID,
			log.ActivityIDKey, a.id,
			log.WorkItemIDKey, id,
			log.ApplicationKey, wi.application,
		)
		a.process.rt.metrics.Counter(metrickeys.WorkItemDispatched, metrics.Tags{
			metrickeys.DefinitionID: a.process.instance.DefinitionID,
			metrickeys.Application:  wi.application,
		}, 1)

		if err := wi.item.Start(ctx, args[id-1]...); err != nil {
			return fmt.Errorf("starting work item %d (%s) of %v: %w", id, wi.application, a, err)
		}
	}

	return nil
}

// inputs binds the input parameters of every application invocation to workflow data.
func (a *Activity) inputs(ad *definition.ActivityDefinition) ([][]any, error) {
	data := a.process.workflowData

	args := make([][]any, len(ad.Applications))
	for i, invocation := range ad.Applications {
		for j, parameter := range invocation.Formal {
			if !parameter.Input {
				continue
			}

			v, ok := data.Get(invocation.Actual[j])
			if !ok {
				return nil, fmt.Errorf("input %q of application %q of %v: %w",
					invocation.Actual[j], invocation.Application, a, ErrUnknownAttribute)
			}

			args[i] = append(args[i], v)
		}
	}

	return args, nil
}

// resolveWorkItems resolves and records a work item for every application invocation.
func (a *Activity) resolveWorkItems(ctx context.Context, ad *definition.ActivityDefinition) error {
	performer, err := a.resolveParticipant(ctx, ad.Performer)
	if err != nil {
		return err
	}

	for i, invocation := range ad.Applications {
		item, err := a.resolveWorkItem(ctx, performer, invocation.Application)
		if err != nil {
			return err
		}

		id := i + 1
		item.SetID(id)

		a.workItems[id] = &pendingWorkItem{
			item:        item,
			application: invocation.Application,
			formal:      invocation.Formal,
			actual:      invocation.Actual,
		}
	}

	return nil
}

func (a *Activity) resolveParticipant(ctx context.Context, performer string) (Participant, error) {
	names := a.qualifiedNames(performer)
	resolver := a.process.rt.resolver

	for _, name := range names {
		p, err := resolver.ResolveParticipant(ctx, a, name)
		if err == nil {
			return p, nil
		}

		if !errors.Is(err, ErrNotFound) {
			return nil, &ResolutionError{Kind: "participant", Names: names, Err: err}
		}
	}

	return nil, &ResolutionError{Kind: "participant", Names: names, Err: ErrNotFound}
}

func (a *Activity) resolveWorkItem(ctx context.Context, performer Participant, application string) (WorkItem, error) {
	names := a.qualifiedNames(application)
	resolver := a.process.rt.resolver

	for _, name := range names {
		wi, err := resolver.ResolveWorkItem(ctx, performer, name)
		if err == nil {
			return wi, nil
		}

		if !errors.Is(err, ErrNotFound) {
			return nil, &ResolutionError{Kind: "application", Names: names, Err: err}
		}
	}

	return nil, &ResolutionError{Kind: "application", Names: names, Err: ErrNotFound}
}

// qualifiedNames returns the lookup tiers for a name: scoped to the process definition first,
// then unscoped.
func (a *Activity) qualifiedNames(name string) []string {
	return []string{
		a.process.instance.DefinitionID + "." + name,
		"." + name,
	}
}

func (a *Activity) workItemFinished(ctx context.Context, id int, results []any) error {
	wi, ok := a.workItems[id]
	if !ok {
		return fmt.Errorf("work item %d of %v: %w", id, a, ErrUnknownWorkItem)
	}

	outputs := 0
	for _, parameter := range wi.formal {
		if parameter.Output {
			outputs++
		}
	}

	if outputs != len(results) {
		return &ArityError{What: "results", Expected: outputs, Got: len(results)}
	}

	delete(a.workItems, id)

	data := a.process.workflowData
	res := results
	for i, parameter := range wi.formal {
		if parameter.Output {
			data.Set(wi.actual[i], res[0])
			res = res[1:]
		}
	}

	a.process.rt.metrics.Counter(metrickeys.WorkItemFinished, metrics.Tags{
		metrickeys.DefinitionID: a.process.instance.DefinitionID,
		metrickeys.Application:  wi.application,
	}, 1)
	a.process.notify(ctx, WorkItemFinished{
		WorkItem:    wi.item,
		Application: wi.application,
		Parameters:  wi.actual,
		Results:     results,
	})

	if len(a.workItems) == 0 {
		return a.finish(ctx)
	}

	return nil
}

func (a *Activity) finish(ctx context.Context) error {
	a.process.rt.metrics.Counter(metrickeys.ActivityFinished, a.process.tags(), 1)
	a.process.notify(ctx, ActivityFinished{Activity: a})

	ad, err := a.Definition(ctx)
	if err != nil {
		return err
	}

	var transitions []*definition.TransitionDefinition
	for _, t := range ad.Outgoing {
		if t.Evaluate(a.process.workflowData) {
			transitions = append(transitions, t)
			if !ad.AndSplit {
				// xor split, take the first one
				break
			}
		}
	}

	if len(transitions) == 0 && len(ad.Outgoing) > 0 {
		a.process.rt.logger.WarnContext(ctx, "no outgoing transition condition is true, branch ends",
			log.InstanceIDKey, a.process.instance.InstanceID,
			log.ActivityIDKey, a.id,
			log.ActivityDefinitionIDKey, a.definitionID,
		)
	}

	return a.process.transition(ctx, a, transitions)
}

func (a *Activity) String() string {
	return fmt.Sprintf("Activity(%q)", a.process.instance.DefinitionID+"."+a.definitionID)
}
