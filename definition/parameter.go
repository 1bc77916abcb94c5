package definition

// Parameter declares a named datum flowing into and/or out of an application or process.
type Parameter struct {
	Name   string `json:"name"`
	Input  bool   `json:"input,omitempty"`
	Output bool   `json:"output,omitempty"`
}

// NewParameter declares a parameter that is neither input nor output.
func NewParameter(name string) Parameter {
	return Parameter{Name: name}
}

func InputParameter(name string) Parameter {
	return Parameter{Name: name, Input: true}
}

func OutputParameter(name string) Parameter {
	return Parameter{Name: name, Output: true}
}

func InputOutputParameter(name string) Parameter {
	return Parameter{Name: name, Input: true, Output: true}
}

// Application is a named unit-of-work signature.
type Application struct {
	ID         string
	Parameters []Parameter
}

func NewApplication(parameters ...Parameter) *Application {
	return &Application{
		Parameters: parameters,
	}
}

// DefineParameters appends formal parameters.
func (a *Application) DefineParameters(parameters ...Parameter) {
	a.Parameters = append(a.Parameters, parameters...)
}

// Participant is a role that performs activities.
type Participant struct {
	ID   string
	Name string
}

func NewParticipant(name string) *Participant {
	return &Participant{Name: name}
}
