package registry

type ErrInvalidDefinition struct {
	msg string
}

func (e *ErrInvalidDefinition) Error() string {
	return e.msg
}

type ErrDefinitionAlreadyRegistered struct {
	msg string
}

func (e *ErrDefinitionAlreadyRegistered) Error() string {
	return e.msg
}

type ErrParticipantAlreadyRegistered struct {
	msg string
}

func (e *ErrParticipantAlreadyRegistered) Error() string {
	return e.msg
}

type ErrWorkItemAlreadyRegistered struct {
	msg string
}

func (e *ErrWorkItemAlreadyRegistered) Error() string {
	return e.msg
}
