package process

import (
	"context"

	"github.com/cschleiden/go-wfmc/definition"
)

// DefinitionLookup resolves process definitions by id. Processes never hold their definition
// directly, so many instances can share one definition.
type DefinitionLookup interface {
	Definition(ctx context.Context, id string) (*definition.ProcessDefinition, error)
}

// Participant is the performer of an activity.
type Participant interface {
	Activity() *Activity
}

// WorkItem is one dispatched unit of work bound to an application invocation.
//
// Start is called while the owning process is locked. Implementations must hand the work off
// and return; the completion is delivered later through Activity.WorkItemFinished from a
// separate call.
type WorkItem interface {
	// ID returns the id assigned through SetID.
	ID() int

	// SetID is called by the activity with an id that is unique within the activity.
	SetID(id int)

	// Start begins the work with the input arguments in formal parameter order.
	//
	// Arguments bound to workflow data restored from a snapshot are converter.Payload values
	// rather than the originally stored Go values. Use converter.AssignValue to read an argument
	// into a typed variable regardless of where it came from.
	Start(ctx context.Context, args ...any) error
}

// Resolver resolves participants and work items by name. Implementations return an error
// matching ErrNotFound when a name is unknown.
type Resolver interface {
	ResolveParticipant(ctx context.Context, activity *Activity, name string) (Participant, error)

	ResolveWorkItem(ctx context.Context, participant Participant, name string) (WorkItem, error)
}

// ResultReceiver receives the output parameters of a finished process.
//
// ProcessFinished is called after the process lock has been released, so it may query the
// process. Results follow the same rules as WorkItem arguments: values restored from a snapshot
// arrive as converter.Payload.
type ResultReceiver interface {
	ProcessFinished(ctx context.Context, p *Process, results ...any) error
}

// ResultReceiverFunc adapts a function to a ResultReceiver.
type ResultReceiverFunc func(ctx context.Context, p *Process, results ...any) error

func (f ResultReceiverFunc) ProcessFinished(ctx context.Context, p *Process, results ...any) error {
	return f(ctx, p, results...)
}

// BaseWorkItem can be embedded to implement the id bookkeeping of WorkItem.
type BaseWorkItem struct {
	id int
}

func (w *BaseWorkItem) ID() int {
	return w.id
}

func (w *BaseWorkItem) SetID(id int) {
	w.id = id
}

type participant struct {
	activity *Activity
}

// NewParticipant returns a participant that performs the given activity.
func NewParticipant(a *Activity) Participant {
	return &participant{activity: a}
}

func (p *participant) Activity() *Activity {
	return p.activity
}
