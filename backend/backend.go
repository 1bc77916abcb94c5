package backend

import (
	"context"
	"errors"
	"time"

	"github.com/cschleiden/go-wfmc/converter"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInstanceNotFound      = errors.New("process instance not found")
	ErrInstanceAlreadyExists = errors.New("process instance already exists")
	ErrInstanceNotFinished   = errors.New("process instance is not finished")
)

// ProcessRecord is the persisted form of a process instance.
type ProcessRecord struct {
	Instance *core.ProcessInstance

	State core.ProcessState

	// Snapshot is the serialized process.Snapshot of the instance.
	Snapshot converter.Payload

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type Backend interface {
	// CreateProcessInstance stores a new process instance. It returns ErrInstanceAlreadyExists
	// if an instance with the same id exists.
	CreateProcessInstance(ctx context.Context, record *ProcessRecord) error

	// UpdateProcessInstance replaces the state, snapshot and timestamps of an existing instance
	UpdateProcessInstance(ctx context.Context, record *ProcessRecord) error

	// GetProcessInstance returns the stored record for the given instance id
	GetProcessInstance(ctx context.Context, instanceID string) (*ProcessRecord, error)

	// GetProcessInstanceState returns the state of the given process instance
	GetProcessInstanceState(ctx context.Context, instanceID string) (core.ProcessState, error)

	// RemoveProcessInstance removes a finished process instance. It returns
	// ErrInstanceNotFinished for instances that are still running.
	RemoveProcessInstance(ctx context.Context, instanceID string) error

	// RemoveProcessInstances removes finished process instances matching the given options
	RemoveProcessInstances(ctx context.Context, options ...RemovalOption) error

	// GetStats returns stats about the backend
	GetStats(ctx context.Context) (*Stats, error)

	// Tracer returns the configured trace provider for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}

// FinishNotifier is implemented by backends that can notify waiters in the same process when an
// instance is stored as finished.
type FinishNotifier interface {
	// NotifyFinished returns a channel that is closed when the given instance finishes, and a
	// function to release the subscription.
	NotifyFinished(instanceID string) (<-chan struct{}, func())
}
