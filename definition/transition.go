package definition

import "github.com/cschleiden/go-wfmc/core"

// NoSource is the source of the synthetic transition that starts a process.
const NoSource = ""

// Condition decides whether a transition is taken, based on workflow-relevant data.
type Condition func(data *core.Data) bool

// TransitionDefinition is a directed edge between two activities.
type TransitionDefinition struct {
	From      string
	To        string
	Condition Condition
}

// NewTransition returns an unconditional transition. Pass a condition to guard it.
func NewTransition(from, to string, condition ...Condition) *TransitionDefinition {
	t := &TransitionDefinition{
		From: from,
		To:   to,
	}

	if len(condition) > 0 {
		t.Condition = condition[0]
	}

	return t
}

// Evaluate returns true if the transition should be taken. A nil condition is always true.
func (t *TransitionDefinition) Evaluate(data *core.Data) bool {
	if t.Condition == nil {
		return true
	}

	return t.Condition(data)
}

func (t *TransitionDefinition) String() string {
	from := t.From
	if from == NoSource {
		from = "<start>"
	}

	return from + "->" + t.To
}
