package process

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyStarted is returned when starting a process that is not in the created state.
	ErrAlreadyStarted = errors.New("process already started")

	// ErrArity is matched by every *ArityError.
	ErrArity = errors.New("wrong number of values")

	// ErrProcess is matched by every *ProcessError.
	ErrProcess = errors.New("process error")

	// ErrUnknownWorkItem is returned for completions of work items that are not pending.
	ErrUnknownWorkItem = errors.New("unknown work item")

	// ErrUnknownAttribute is returned when an application input names a workflow data attribute
	// that has not been set.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrUnknownActivity is returned when addressing an activity that is not live.
	ErrUnknownActivity = errors.New("unknown activity")

	// ErrNotFound is returned by a Resolver that has no match for a name. It makes the activity
	// fall back to the next lookup tier.
	ErrNotFound = errors.New("not found")

	// ErrResolution is matched by every *ResolutionError.
	ErrResolution = errors.New("could not resolve")
)

// ArityError reports a mismatch between declared parameters and supplied values.
type ArityError struct {
	What     string
	Expected int
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("wrong number of %s: expected %d, got %d", e.What, e.Expected, e.Got)
}

func (e *ArityError) Is(target error) bool {
	return target == ErrArity
}

// ProcessError is a runtime protocol violation.
type ProcessError struct {
	Message  string
	Activity string
}

func (e *ProcessError) Error() string {
	if e.Activity == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Activity, e.Message)
}

func (e *ProcessError) Is(target error) bool {
	return target == ErrProcess
}

// ResolutionError is returned when neither the qualified nor the unqualified name of a
// participant or application could be resolved.
type ResolutionError struct {
	Kind  string
	Names []string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s (tried %s): %v", e.Kind, strings.Join(e.Names, ", "), e.Err)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
