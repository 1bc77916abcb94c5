package workflowerrors

// PanicError is the error reported for an application that panicked.
type PanicError struct {
	message    string
	stacktrace string
}

func (pe *PanicError) Error() string {
	return pe.message
}

func (pe *PanicError) Stack() string {
	return pe.stacktrace
}

// NewPanicError returns a panic error carrying the stack of the function that recovered the panic's
// caller. Call it from the deferred function that recovers.
func NewPanicError(msg string) *PanicError {
	return &PanicError{
		message:    msg,
		stacktrace: stack(2),
	}
}
