package definition

import "fmt"

// ApplicationInvocation binds the formal parameters of an application to workflow-relevant
// data attribute names.
type ApplicationInvocation struct {
	Application string
	Formal      []Parameter
	Actual      []string
}

// ActivityDefinition is a node of a process graph.
type ActivityDefinition struct {
	ID   string
	Name string

	// Process is set when the activity is registered with a process definition.
	Process *ProcessDefinition

	Applications []ApplicationInvocation
	Performer    string

	AndSplit bool
	AndJoin  bool

	// Incoming and Outgoing are derived when the owning definition is validated.
	Incoming []*TransitionDefinition
	Outgoing []*TransitionDefinition
}

func NewActivity(name ...string) *ActivityDefinition {
	a := &ActivityDefinition{}
	if len(name) > 0 {
		a.Name = name[0]
	}

	return a
}

// AddApplication declares that the activity invokes the given application. The actual names
// are bound positionally to the application's formal parameters.
func (a *ActivityDefinition) AddApplication(application string, actual ...string) error {
	if a.Process == nil {
		return fmt.Errorf("activity %q is not part of a process definition", a.ID)
	}

	if a.Process.Frozen() {
		return fmt.Errorf("adding application %q to activity %q: %w", application, a.ID, ErrFrozen)
	}

	app, ok := a.Process.Application(application)
	if !ok {
		return fmt.Errorf("unknown application %q", application)
	}

	if len(app.Parameters) != len(actual) {
		return fmt.Errorf("wrong number of parameters for application %q: expected %d, got %d",
			application, len(app.Parameters), len(actual))
	}

	formal := make([]Parameter, len(app.Parameters))
	copy(formal, app.Parameters)

	a.Applications = append(a.Applications, ApplicationInvocation{
		Application: application,
		Formal:      formal,
		Actual:      append([]string(nil), actual...),
	})

	return nil
}

func (a *ActivityDefinition) DefinePerformer(performer string) {
	a.Performer = performer
}

func (a *ActivityDefinition) SetAndSplit(setting bool) {
	a.AndSplit = setting
}

func (a *ActivityDefinition) SetAndJoin(setting bool) {
	a.AndJoin = setting
}

func (a *ActivityDefinition) String() string {
	return fmt.Sprintf("ActivityDefinition(%q)", a.Name)
}
