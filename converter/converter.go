package converter

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Payload is the serialized form of a single value.
type Payload = json.RawMessage

type Converter interface {
	// To converts the given value to a payload
	To(v any) (Payload, error)

	// From converts the given payload to a value
	From(data Payload, vptr any) error
}

var DefaultConverter Converter = &jsonConverter{}

// AssignValue stores v into vptr. v may be a live value or a Payload, in which case it is
// decoded using c.
func AssignValue(c Converter, v any, vptr any) error {
	vvptr := reflect.ValueOf(vptr)

	if vvptr.Kind() != reflect.Ptr || vvptr.IsNil() {
		return errors.New("vptr needs to be a non-nil pointer")
	}

	target := vvptr.Elem()

	if v == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	if vp, ok := v.(Payload); ok {
		if vp == nil {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}

		// If the receiving ptr is also of type Payload, we can directly assign
		if plptr, ok := vptr.(*Payload); ok {
			*plptr = vp
			return nil
		}

		return c.From(vp, vptr)
	}

	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(target.Type()) {
		return fmt.Errorf("cannot assign value of type %v to %v", rv.Type(), target.Type())
	}

	target.Set(rv)

	return nil
}
