package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/process"
)

// ParticipantFactory creates the performer of an activity.
type ParticipantFactory func(a *process.Activity) process.Participant

// WorkItemFactory creates a work item for a performer.
type WorkItemFactory func(p process.Participant) process.WorkItem

// Registry maps names to process definitions, participants and work items. It implements
// process.DefinitionLookup and process.Resolver.
//
// Participants and work items are registered under the names the runtime resolves:
// "<definition-id>.<name>" for a single process definition, or ".<name>" for all of them.
type Registry struct {
	sync.Mutex

	definitionMap  map[string]*definition.ProcessDefinition
	participantMap map[string]ParticipantFactory
	workItemMap    map[string]WorkItemFactory
}

var (
	_ process.DefinitionLookup = (*Registry)(nil)
	_ process.Resolver         = (*Registry)(nil)
)

// New creates a new registry instance.
func New() *Registry {
	return &Registry{
		definitionMap:  make(map[string]*definition.ProcessDefinition),
		participantMap: make(map[string]ParticipantFactory),
		workItemMap:    make(map[string]WorkItemFactory),
	}
}

type registerConfig struct {
	Name     string
	Validate bool
}

// RegisterDefinition registers a process definition under its id, or the name given with
// WithName. The definition is frozen once registered.
func (r *Registry) RegisterDefinition(pd *definition.ProcessDefinition, opts ...RegisterOption) error {
	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{})
	name := cfg.Name
	if name == "" {
		name = pd.ID
	}

	if name == "" {
		return &ErrInvalidDefinition{"process definition has no id"}
	}

	if cfg.Validate {
		if _, err := pd.StartTransition(); err != nil {
			return &ErrInvalidDefinition{fmt.Sprintf("process definition %q: %v", name, err)}
		}
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.definitionMap[name]; ok {
		return &ErrDefinitionAlreadyRegistered{fmt.Sprintf("process definition with name %q already registered", name)}
	}
	r.definitionMap[name] = pd

	pd.Freeze()

	return nil
}

func (r *Registry) RegisterParticipant(name string, factory ParticipantFactory) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.participantMap[name]; ok {
		return &ErrParticipantAlreadyRegistered{fmt.Sprintf("participant with name %q already registered", name)}
	}
	r.participantMap[name] = factory

	return nil
}

func (r *Registry) RegisterWorkItem(name string, factory WorkItemFactory) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.workItemMap[name]; ok {
		return &ErrWorkItemAlreadyRegistered{fmt.Sprintf("work item with name %q already registered", name)}
	}
	r.workItemMap[name] = factory

	return nil
}

func (r *Registry) Definition(_ context.Context, id string) (*definition.ProcessDefinition, error) {
	r.Lock()
	defer r.Unlock()

	if pd, ok := r.definitionMap[id]; ok {
		return pd, nil
	}

	return nil, fmt.Errorf("process definition %q: %w", id, process.ErrNotFound)
}

func (r *Registry) ResolveParticipant(_ context.Context, activity *process.Activity, name string) (process.Participant, error) {
	r.Lock()
	f, ok := r.participantMap[name]
	r.Unlock()

	if !ok {
		return nil, fmt.Errorf("participant %q: %w", name, process.ErrNotFound)
	}

	return f(activity), nil
}

func (r *Registry) ResolveWorkItem(_ context.Context, participant process.Participant, name string) (process.WorkItem, error) {
	r.Lock()
	f, ok := r.workItemMap[name]
	r.Unlock()

	if !ok {
		return nil, fmt.Errorf("work item %q: %w", name, process.ErrNotFound)
	}

	return f(participant), nil
}
