package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cschleiden/go-wfmc/converter"
)

// Data is a named attribute store. A process owns two of them: workflow-relevant data used for
// routing conditions and parameter passing, and application-relevant data shared by work items.
//
// Attributes restored from a serialized form are held as converter.Payload until they are read
// through Value, which decodes and caches them.
type Data struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewData() *Data {
	return &Data{
		values: make(map[string]any),
	}
}

func (d *Data) Set(name string, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.values == nil {
		d.values = make(map[string]any)
	}

	d.values[name] = v
}

// Get returns the raw attribute value.
func (d *Data) Get(name string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.values[name]
	return v, ok
}

func (d *Data) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

func (d *Data) Delete(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.values, name)
}

// Names returns the attribute names in sorted order.
func (d *Data) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.values))
	for name := range d.values {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (d *Data) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.values)
}

// Value returns the named attribute as T.
func Value[T any](d *Data, name string) (T, error) {
	var r T

	v, ok := d.Get(name)
	if !ok {
		return r, fmt.Errorf("attribute %q not set", name)
	}

	if err := converter.AssignValue(converter.DefaultConverter, v, &r); err != nil {
		return r, fmt.Errorf("reading attribute %q: %w", name, err)
	}

	if _, isPayload := v.(converter.Payload); isPayload {
		d.Set(name, r)
	}

	return r, nil
}

func (d *Data) MarshalJSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	attrs := make(map[string]converter.Payload, len(d.values))
	for name, v := range d.values {
		if p, ok := v.(converter.Payload); ok {
			attrs[name] = p
			continue
		}

		p, err := converter.DefaultConverter.To(v)
		if err != nil {
			return nil, fmt.Errorf("converting attribute %q: %w", name, err)
		}

		attrs[name] = p
	}

	return json.Marshal(attrs)
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var attrs map[string]converter.Payload
	if err := json.Unmarshal(b, &attrs); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.values = make(map[string]any, len(attrs))
	for name, p := range attrs {
		d.values[name] = p
	}

	return nil
}

// Clone returns a copy of the data. Attribute values are copied shallowly.
func (d *Data) Clone() *Data {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c := &Data{
		values: make(map[string]any, len(d.values)),
	}
	for name, v := range d.values {
		c.values[name] = v
	}

	return c
}
