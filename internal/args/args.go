package args

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/cschleiden/go-wfmc/converter"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ValidateFunc checks that fn can run as an application: a function whose last return value is
// an error.
func ValidateFunc(fn any) error {
	fnT := reflect.TypeOf(fn)
	if fnT == nil || fnT.Kind() != reflect.Func {
		return errors.New("application must be a function")
	}

	if fnT.NumOut() == 0 || fnT.Out(fnT.NumOut()-1) != errorType {
		return errors.New("application must return error as last return value")
	}

	return nil
}

// InputsToArgs converts work item arguments to the parameters of fn. Arguments are either live
// values or payloads. If the first parameter of fn is a context.Context, its slot is left empty and
// addContext is true.
func InputsToArgs(c converter.Converter, fn reflect.Value, inputs []any) (args []reflect.Value, addContext bool, err error) {
	fnT := fn.Type()

	numArgs := fnT.NumIn()
	args = make([]reflect.Value, numArgs)

	first := 0
	if numArgs > 0 && isContext(fnT.In(0)) {
		addContext = true
		first = 1
	}

	if numArgs-first != len(inputs) {
		return nil, addContext, fmt.Errorf("mismatched argument count: expected %d, got %d", numArgs-first, len(inputs))
	}

	for i := first; i < numArgs; i++ {
		arg := reflect.New(fnT.In(i))
		if err := assign(c, inputs[i-first], arg.Interface()); err != nil {
			return nil, addContext, fmt.Errorf("converting argument %d: %w", i-first, err)
		}

		args[i] = arg.Elem()
	}

	return args, addContext, nil
}

// OutputsToResults splits the return values of an application into its results and the
// trailing error.
func OutputsToResults(outputs []reflect.Value) ([]any, error) {
	if len(outputs) == 0 {
		return nil, nil
	}

	var err error
	if errV := outputs[len(outputs)-1]; !errV.IsNil() {
		err = errV.Interface().(error)
	}

	results := make([]any, 0, len(outputs)-1)
	for _, o := range outputs[:len(outputs)-1] {
		results = append(results, o.Interface())
	}

	return results, err
}

// assign stores v into vptr. Live values that are not assignable to the target type are
// converted through the converter.
func assign(c converter.Converter, v any, vptr any) error {
	if _, ok := v.(converter.Payload); !ok && v != nil {
		if !reflect.TypeOf(v).AssignableTo(reflect.TypeOf(vptr).Elem()) {
			p, err := c.To(v)
			if err != nil {
				return err
			}

			v = p
		}
	}

	return converter.AssignValue(c, v, vptr)
}

func isContext(inType reflect.Type) bool {
	return inType != nil && inType.Implements(contextType)
}
