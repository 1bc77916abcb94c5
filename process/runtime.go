package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.opentelemetry.io/otel/trace"
)

// Runtime creates and restores processes. It is safe for concurrent use; the processes it
// creates are independent of each other.
type Runtime struct {
	definitions DefinitionLookup
	resolver    Resolver

	logger  *slog.Logger
	metrics metrics.Client
	tracer  trace.Tracer
	sink    Sink
}

func NewRuntime(definitions DefinitionLookup, resolver Resolver, opts ...Option) *Runtime {
	options := ApplyOptions(opts...)

	return &Runtime{
		definitions: definitions,
		resolver:    resolver,
		logger:      options.Logger,
		metrics:     options.Metrics,
		tracer:      tracing.Tracer(options.TracerProvider),
		sink:        options.Sink,
	}
}

func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

func (r *Runtime) Definitions() DefinitionLookup {
	return r.definitions
}

// NewProcess creates a process for the given instance. The definition is validated and its
// start transition derived. receiver may be nil.
func (r *Runtime) NewProcess(ctx context.Context, instance *core.ProcessInstance, receiver ResultReceiver) (*Process, error) {
	pd, err := r.definitions.Definition(ctx, instance.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("looking up process definition %q: %w", instance.DefinitionID, err)
	}

	start, err := pd.StartTransition()
	if err != nil {
		return nil, err
	}

	p := newProcess(r, instance, start, receiver)

	r.metrics.Counter(metrickeys.ProcessCreated, metrics.Tags{metrickeys.DefinitionID: instance.DefinitionID}, 1)

	return p, nil
}

func (r *Runtime) definition(ctx context.Context, id string) (*definition.ProcessDefinition, error) {
	pd, err := r.definitions.Definition(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up process definition %q: %w", id, err)
	}

	return pd, nil
}
