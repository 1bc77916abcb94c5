package workflowerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NewPanicError(t *testing.T) {
	e := func() *PanicError {
		return NewPanicError("test")
	}()

	require.Equal(t, "test", e.Error())
	require.NotContains(t, e.Stack(), "Test_NewPanicError.func1")
	require.NotContains(t, e.Stack(), "NewPanicError(")
}

func Test_NewPanicError_Recovered(t *testing.T) {
	var err *PanicError

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = NewPanicError(fmt.Sprintf("panic: %v", r))
			}
		}()

		explode()
	}()

	require.NotNil(t, err)
	require.Equal(t, "panic: boom", err.Error())
	require.Contains(t, err.Stack(), "explode")
}

func explode() {
	panic("boom")
}
