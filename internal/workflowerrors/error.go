package workflowerrors

import (
	"errors"
)

// Error marks an error returned by an application as permanent or retryable.
type Error struct {
	Message string

	Permanent  bool
	Cause      error
	Stacktrace string
}

func (we *Error) Error() string {
	return we.Message
}

func (we *Error) Unwrap() error {
	if we == nil || we.Cause == nil {
		return nil
	}

	return we.Cause
}

func (we *Error) Stack() string {
	return we.Stacktrace
}

var _ error = (*Error)(nil)

// FromError wraps the given error into an Error. The original error stays reachable through
// errors.Is and errors.As.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	// If this is already an Error, just return it, do not wrap again
	if e, ok := err.(*Error); ok {
		return e
	}

	e := &Error{
		Message: err.Error(),
		Cause:   err,
	}

	if stackTracer, ok := err.(interface{ Stack() string }); ok {
		e.Stacktrace = stackTracer.Stack()
	}

	return e
}

func NewPermanentError(err error) *Error {
	e := *FromError(err)
	e.Permanent = true
	return &e
}

// CanRetry returns true if the given error is retryable
func CanRetry(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return !e.Permanent
	}

	// Retry errors by default
	return true
}
