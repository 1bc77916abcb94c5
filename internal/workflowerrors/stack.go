package workflowerrors

import (
	"errors"

	goerrors "github.com/go-errors/errors"
)

// stack returns the formatted stack of the calling goroutine. skip is the number of frames to skip
// above the caller of stack.
func stack(skip int) string {
	goerr := goerrors.Wrap(errors.New(""), skip+1)
	return string(goerr.Stack())
}
