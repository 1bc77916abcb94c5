package process

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/log"
)

// Snapshot is the serializable state of a process. Definitions are not part of a snapshot,
// they are looked up by id when the process is restored.
type Snapshot struct {
	Instance        *core.ProcessInstance `json:"instance"`
	State           core.ProcessState     `json:"state"`
	NextActivityID  int                   `json:"next_activity_id"`
	WorkflowData    *core.Data            `json:"workflow_data"`
	ApplicationData *core.Data            `json:"application_data"`
	Activities      []ActivitySnapshot    `json:"activities,omitempty"`
}

type ActivitySnapshot struct {
	ID           int                `json:"id"`
	DefinitionID string             `json:"definition_id"`
	Incoming     []TransitionRef    `json:"incoming,omitempty"`
	WorkItems    []WorkItemSnapshot `json:"work_items,omitempty"`
}

// TransitionRef identifies a transition of a process definition by its position. Index is -1
// for the synthetic start transition.
type TransitionRef struct {
	Index int    `json:"index"`
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
}

type WorkItemSnapshot struct {
	ID          int                    `json:"id"`
	Application string                 `json:"application"`
	Formal      []definition.Parameter `json:"formal"`
	Actual      []string               `json:"actual"`
}

// Snapshot captures the current state of the process.
func (p *Process) Snapshot(ctx context.Context) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pd, err := p.rt.definition(ctx, p.instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	transitions := pd.Transitions()

	s := &Snapshot{
		Instance:        p.instance,
		State:           p.state,
		NextActivityID:  p.nextActivityID,
		WorkflowData:    p.workflowData.Clone(),
		ApplicationData: p.applicationData.Clone(),
	}

	for _, a := range p.sortedActivities() {
		as := ActivitySnapshot{
			ID:           a.id,
			DefinitionID: a.definitionID,
		}

		for _, t := range a.incoming {
			ref, err := p.transitionRef(transitions, t)
			if err != nil {
				return nil, err
			}

			as.Incoming = append(as.Incoming, ref)
		}

		for _, id := range a.pendingIDs() {
			wi := a.workItems[id]
			as.WorkItems = append(as.WorkItems, WorkItemSnapshot{
				ID:          id,
				Application: wi.application,
				Formal:      wi.formal,
				Actual:      wi.actual,
			})
		}

		s.Activities = append(s.Activities, as)
	}

	return s, nil
}

func (p *Process) transitionRef(transitions []*definition.TransitionDefinition, t *definition.TransitionDefinition) (TransitionRef, error) {
	if t == p.startTransition {
		return TransitionRef{Index: -1, From: t.From, To: t.To}, nil
	}

	for i, candidate := range transitions {
		if candidate == t {
			return TransitionRef{Index: i, From: t.From, To: t.To}, nil
		}
	}

	return TransitionRef{}, fmt.Errorf("transition %v is not part of the process definition", t)
}

// Restore rebuilds a live process from a snapshot. Pending work items are resolved again but
// not restarted; their completions are expected through the usual path.
func (r *Runtime) Restore(ctx context.Context, s *Snapshot, receiver ResultReceiver) (*Process, error) {
	if s.Instance == nil {
		return nil, fmt.Errorf("snapshot has no process instance")
	}

	pd, err := r.definition(ctx, s.Instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	start, err := pd.StartTransition()
	if err != nil {
		return nil, err
	}

	transitions := pd.Transitions()

	p := newProcess(r, s.Instance, start, receiver)
	p.state = s.State
	p.nextActivityID = s.NextActivityID

	if s.WorkflowData != nil {
		p.workflowData = s.WorkflowData.Clone()
	}

	if s.ApplicationData != nil {
		p.applicationData = s.ApplicationData.Clone()
	}

	for _, as := range s.Activities {
		a := newActivity(p, as.ID, as.DefinitionID)

		ad, ok := pd.Activity(as.DefinitionID)
		if !ok {
			return nil, fmt.Errorf("restoring activity %d: definition %q: %w", as.ID, as.DefinitionID, ErrUnknownActivity)
		}

		for _, ref := range as.Incoming {
			t, err := resolveTransitionRef(start, transitions, ref)
			if err != nil {
				return nil, fmt.Errorf("restoring activity %d: %w", as.ID, err)
			}

			a.incoming = append(a.incoming, t)
		}

		if len(as.WorkItems) > 0 {
			performer, err := a.resolveParticipant(ctx, ad.Performer)
			if err != nil {
				return nil, err
			}

			for _, ws := range as.WorkItems {
				item, err := a.resolveWorkItem(ctx, performer, ws.Application)
				if err != nil {
					return nil, err
				}

				item.SetID(ws.ID)

				a.workItems[ws.ID] = &pendingWorkItem{
					item:        item,
					application: ws.Application,
					formal:      ws.Formal,
					actual:      ws.Actual,
				}
			}
		}

		p.activities[a.id] = a
	}

	r.logger.DebugContext(ctx, "restored process",
		log.InstanceIDKey, s.Instance.InstanceID,
		log.DefinitionIDKey, s.Instance.DefinitionID,
		log.ProcessStateKey, s.State.String(),
	)
	r.metrics.Counter(metrickeys.ProcessRestored, p.tags(), 1)

	return p, nil
}

func resolveTransitionRef(start *definition.TransitionDefinition, transitions []*definition.TransitionDefinition, ref TransitionRef) (*definition.TransitionDefinition, error) {
	var t *definition.TransitionDefinition
	if ref.Index == -1 {
		t = start
	} else if ref.Index >= 0 && ref.Index < len(transitions) {
		t = transitions[ref.Index]
	}

	if t == nil || t.From != ref.From || t.To != ref.To {
		return nil, fmt.Errorf("transition %d (%s->%s) does not match the process definition", ref.Index, ref.From, ref.To)
	}

	return t, nil
}
