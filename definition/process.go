package definition

import (
	"fmt"
	"sort"
	"sync"
)

// ProcessDefinition is the static, reusable description of a workflow graph.
//
// A definition is built once and then frozen, which registering it does. Live processes read
// the derived Incoming and Outgoing transitions of its activities without locking, so any
// further Define call panics.
type ProcessDefinition struct {
	ID string

	mu sync.Mutex

	activities   map[string]*ActivityDefinition
	transitions  []*TransitionDefinition
	applications map[string]*Application
	participants map[string]*Participant
	parameters   []Parameter

	start  *TransitionDefinition
	frozen bool
}

func NewProcessDefinition(id string) *ProcessDefinition {
	return &ProcessDefinition{
		ID:           id,
		activities:   make(map[string]*ActivityDefinition),
		applications: make(map[string]*Application),
		participants: make(map[string]*Participant),
	}
}

// DefineActivities registers activities by id. Existing entries with the same id are replaced.
func (pd *ProcessDefinition) DefineActivities(activities map[string]*ActivityDefinition) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.mustNotBeFrozen()

	pd.start = nil

	for id, activity := range activities {
		activity.ID = id
		if activity.Name == "" {
			activity.Name = pd.ID + "." + id
		}
		activity.Process = pd
		pd.activities[id] = activity
	}
}

// DefineTransitions appends transitions in order.
func (pd *ProcessDefinition) DefineTransitions(transitions ...*TransitionDefinition) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.mustNotBeFrozen()

	pd.start = nil
	pd.transitions = append(pd.transitions, transitions...)
}

func (pd *ProcessDefinition) DefineApplications(applications map[string]*Application) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.mustNotBeFrozen()

	for id, application := range applications {
		application.ID = id
		pd.applications[id] = application
	}
}

func (pd *ProcessDefinition) DefineParticipants(participants map[string]*Participant) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.mustNotBeFrozen()

	for id, participant := range participants {
		participant.ID = id
		pd.participants[id] = participant
	}
}

// DefineParameters appends process parameters. Input parameters are set as workflow-relevant
// data when a process starts, output parameters are reported when it finishes.
func (pd *ProcessDefinition) DefineParameters(parameters ...Parameter) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.mustNotBeFrozen()

	pd.parameters = append(pd.parameters, parameters...)
}

// Freeze prevents further changes to the definition.
func (pd *ProcessDefinition) Freeze() {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	pd.frozen = true
}

func (pd *ProcessDefinition) Frozen() bool {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	return pd.frozen
}

func (pd *ProcessDefinition) mustNotBeFrozen() {
	if pd.frozen {
		panic(fmt.Sprintf("%v: %v", pd, ErrFrozen))
	}
}

func (pd *ProcessDefinition) Activity(id string) (*ActivityDefinition, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	a, ok := pd.activities[id]
	return a, ok
}

// ActivityIDs returns the ids of all activities in sorted order.
func (pd *ProcessDefinition) ActivityIDs() []string {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	return sortedKeys(pd.activities)
}

func (pd *ProcessDefinition) Application(id string) (*Application, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	a, ok := pd.applications[id]
	return a, ok
}

func (pd *ProcessDefinition) Participant(id string) (*Participant, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	p, ok := pd.participants[id]
	return p, ok
}

func (pd *ProcessDefinition) Transitions() []*TransitionDefinition {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	return append([]*TransitionDefinition(nil), pd.transitions...)
}

func (pd *ProcessDefinition) Parameters() []Parameter {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	return append([]Parameter(nil), pd.parameters...)
}

// StartTransition returns the synthetic transition targeting the start activity. It is derived
// on first use and cached until activities or transitions change.
func (pd *ProcessDefinition) StartTransition() (*TransitionDefinition, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.start != nil {
		return pd.start, nil
	}

	start, err := pd.deriveStart()
	if err != nil {
		return nil, err
	}

	pd.start = start

	return start, nil
}

// DeriveStart recomputes incoming and outgoing transitions of all activities and returns a
// new synthetic start transition. It does not use or update the cache. Frozen definitions keep
// their derived transitions and return ErrFrozen.
func (pd *ProcessDefinition) DeriveStart() (*TransitionDefinition, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.frozen {
		return nil, fmt.Errorf("deriving start of %v: %w", pd, ErrFrozen)
	}

	return pd.deriveStart()
}

func (pd *ProcessDefinition) deriveStart() (*TransitionDefinition, error) {
	incoming := make(map[string][]*TransitionDefinition, len(pd.activities))
	outgoing := make(map[string][]*TransitionDefinition, len(pd.activities))

	for _, transition := range pd.transitions {
		if _, ok := pd.activities[transition.From]; !ok {
			return nil, invalid(fmt.Sprintf("transition %v has unknown source activity", transition), transition.From)
		}

		if _, ok := pd.activities[transition.To]; !ok {
			return nil, invalid(fmt.Sprintf("transition %v has unknown target activity", transition), transition.To)
		}

		outgoing[transition.From] = append(outgoing[transition.From], transition)
		incoming[transition.To] = append(incoming[transition.To], transition)
	}

	// Derived transitions are only replaced once every transition resolves
	for id, activity := range pd.activities {
		activity.Incoming = incoming[id]
		activity.Outgoing = outgoing[id]
	}

	var starts []string
	for _, id := range sortedKeys(pd.activities) {
		if len(incoming[id]) == 0 {
			starts = append(starts, id)
		}
	}

	switch {
	case len(starts) == 0:
		return nil, invalid("no start activities")
	case len(starts) > 1:
		return nil, invalid("multiple start activities", starts...)
	}

	if len(outgoing[starts[0]]) == 0 {
		return nil, invalid("activity has no transitions", starts[0])
	}

	return &TransitionDefinition{From: NoSource, To: starts[0]}, nil
}

func (pd *ProcessDefinition) String() string {
	return fmt.Sprintf("ProcessDefinition(%q)", pd.ID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
