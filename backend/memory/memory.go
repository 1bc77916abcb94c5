package memory

import (
	"context"
	"sync"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.opentelemetry.io/otel/trace"
)

// NewMemoryBackend returns a backend that keeps all records in memory. Records are lost when
// the process exits.
func NewMemoryBackend(opts ...backend.BackendOption) *memoryBackend {
	options := backend.ApplyOptions(opts...)

	return &memoryBackend{
		instances: make(map[string]*backend.ProcessRecord),
		options:   &options,
	}
}

type memoryBackend struct {
	mu        sync.RWMutex
	instances map[string]*backend.ProcessRecord

	options *backend.Options
}

var _ backend.Backend = (*memoryBackend)(nil)

func (mb *memoryBackend) CreateProcessInstance(_ context.Context, record *backend.ProcessRecord) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, ok := mb.instances[record.Instance.InstanceID]; ok {
		return backend.ErrInstanceAlreadyExists
	}

	mb.instances[record.Instance.InstanceID] = record.Clone()

	return nil
}

func (mb *memoryBackend) UpdateProcessInstance(_ context.Context, record *backend.ProcessRecord) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	existing, ok := mb.instances[record.Instance.InstanceID]
	if !ok {
		return backend.ErrInstanceNotFound
	}

	r := record.Clone()
	r.CreatedAt = existing.CreatedAt
	mb.instances[record.Instance.InstanceID] = r

	return nil
}

func (mb *memoryBackend) GetProcessInstance(_ context.Context, instanceID string) (*backend.ProcessRecord, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	r, ok := mb.instances[instanceID]
	if !ok {
		return nil, backend.ErrInstanceNotFound
	}

	return r.Clone(), nil
}

func (mb *memoryBackend) GetProcessInstanceState(_ context.Context, instanceID string) (core.ProcessState, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	r, ok := mb.instances[instanceID]
	if !ok {
		return core.ProcessStateCreated, backend.ErrInstanceNotFound
	}

	return r.State, nil
}

func (mb *memoryBackend) RemoveProcessInstance(_ context.Context, instanceID string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	r, ok := mb.instances[instanceID]
	if !ok {
		return backend.ErrInstanceNotFound
	}

	if !r.Finished() {
		return backend.ErrInstanceNotFinished
	}

	delete(mb.instances, instanceID)

	return nil
}

func (mb *memoryBackend) RemoveProcessInstances(_ context.Context, options ...backend.RemovalOption) error {
	o := backend.ApplyRemovalOptions(options...)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	for id, r := range mb.instances {
		if r.Finished() && o.Matches(r.CompletedAt) {
			delete(mb.instances, id)
		}
	}

	return nil
}

func (mb *memoryBackend) GetStats(_ context.Context) (*backend.Stats, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	s := &backend.Stats{}
	for _, r := range mb.instances {
		if r.Finished() {
			s.FinishedProcessInstances++
		} else {
			s.ActiveProcessInstances++
		}
	}

	return s, nil
}

func (mb *memoryBackend) Tracer() trace.Tracer {
	return tracing.Tracer(mb.options.TracerProvider)
}

func (mb *memoryBackend) Metrics() metrics.Client {
	return mb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "memory"})
}

func (mb *memoryBackend) Options() *backend.Options {
	return mb.options
}

func (mb *memoryBackend) Close() error {
	return nil
}
