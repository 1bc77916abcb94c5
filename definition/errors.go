package definition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDefinition is matched by every structural definition error.
var ErrInvalidDefinition = errors.New("invalid process definition")

// ErrFrozen is returned or panicked with when changing a frozen process definition.
var ErrFrozen = errors.New("process definition is frozen")

type InvalidDefinitionError struct {
	Message    string
	Activities []string
}

func (e *InvalidDefinitionError) Error() string {
	if len(e.Activities) == 0 {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Activities, ", "))
}

func (e *InvalidDefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

func invalid(msg string, activities ...string) error {
	return &InvalidDefinitionError{Message: msg, Activities: activities}
}
