package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/log"
	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrWaitTimeout = errors.New("process did not finish in specified timeout")

// Engine runs processes on top of a backend. Every state change of a process is persisted as a
// snapshot before the operation returns, and live processes are kept in a cache so work item
// completions do not need to restore them.
type Engine struct {
	backend backend.Backend
	runtime *process.Runtime
	options *Options

	clock   clock.Clock
	logger  *slog.Logger
	metrics metrics.Client
	tracer  trace.Tracer

	cache *processCache
	locks *instanceLocks
}

func New(b backend.Backend, rt *process.Runtime, opts ...Option) *Engine {
	options := ApplyOptions(opts...)

	e := &Engine{
		backend: b,
		runtime: rt,
		options: &options,

		clock:   options.Clock,
		logger:  b.Options().Logger,
		metrics: b.Metrics(),
		tracer:  b.Tracer(),

		cache: newProcessCache(b.Metrics(), options.ProcessCacheSize, options.ProcessCacheTTL),
		locks: newInstanceLocks(),
	}

	e.cache.StartEviction()

	return e
}

func (e *Engine) Backend() backend.Backend {
	return e.backend
}

func (e *Engine) Runtime() *process.Runtime {
	return e.runtime
}

type ProcessInstanceOptions struct {
	// InstanceID of the new process. A random id is used when empty.
	InstanceID string
}

// CreateProcess creates a new instance of the given process definition and starts it with args.
//
// The instance is persisted only after it started successfully. If starting fails nothing is
// stored and the error is returned.
func (e *Engine) CreateProcess(ctx context.Context, options ProcessInstanceOptions, definitionID string, args ...any) (_ *core.ProcessInstance, err error) {
	instanceID := options.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	ctx, span := e.tracer.Start(ctx, "CreateProcess", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, instanceID),
		attribute.String(tracing.ProcessDefinitionID, definitionID),
	))
	defer func() {
		tracing.WithSpanError(span, err)
		span.End()
	}()

	defer e.timer("create").Stop()

	unlock := e.locks.Lock(instanceID)
	defer unlock()

	if _, err := e.backend.GetProcessInstanceState(ctx, instanceID); err == nil {
		return nil, backend.ErrInstanceAlreadyExists
	} else if !errors.Is(err, backend.ErrInstanceNotFound) {
		return nil, fmt.Errorf("checking for existing instance: %w", err)
	}

	instance := core.NewProcessInstance(instanceID, definitionID)

	p, err := e.runtime.NewProcess(ctx, instance, e.options.ResultReceiver)
	if err != nil {
		return nil, fmt.Errorf("creating process: %w", err)
	}

	startErr := p.Start(ctx, args...)
	if startErr != nil && p.State() != core.ProcessStateFinished {
		return nil, fmt.Errorf("starting process: %w", startErr)
	}

	record, err := e.record(ctx, p)
	if err != nil {
		return nil, err
	}

	record.CreatedAt = record.UpdatedAt

	if err := e.backend.CreateProcessInstance(ctx, record); err != nil {
		return nil, fmt.Errorf("storing process instance: %w", err)
	}

	e.cacheOrEvict(p)

	e.logger.DebugContext(ctx, "created process",
		log.InstanceIDKey, instanceID,
		log.DefinitionIDKey, definitionID,
		log.ProcessStateKey, record.State.String(),
	)

	// The process finished, but its results could not be delivered
	if startErr != nil {
		return instance, startErr
	}

	return instance, nil
}

// CompleteWorkItem delivers the results of a work item to a process instance and persists the
// resulting state.
//
// If delivering the results fails before the process finished, the live process is dropped and
// the next operation continues from the last persisted state.
func (e *Engine) CompleteWorkItem(ctx context.Context, instanceID string, activityID, workItemID int, results ...any) (err error) {
	ctx, span := e.tracer.Start(ctx, "CompleteWorkItem", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, instanceID),
		attribute.Int(tracing.ActivityID, activityID),
		attribute.Int(tracing.WorkItemID, workItemID),
	))
	defer func() {
		tracing.WithSpanError(span, err)
		span.End()
	}()

	defer e.timer("complete").Stop()

	unlock := e.locks.Lock(instanceID)
	defer unlock()

	p, err := e.load(ctx, instanceID)
	if err != nil {
		return err
	}

	if p.State() == core.ProcessStateFinished {
		return fmt.Errorf("completing work item %d of activity %d: %w", workItemID, activityID, ErrProcessFinished)
	}

	completeErr := p.CompleteWorkItem(ctx, activityID, workItemID, results...)
	if completeErr != nil && p.State() != core.ProcessStateFinished {
		e.cache.Evict(instanceID)
		return completeErr
	}

	if err := e.save(ctx, p); err != nil {
		e.cache.Evict(instanceID)
		return err
	}

	e.cacheOrEvict(p)

	return completeErr
}

// GetProcessState returns the persisted state of a process instance.
func (e *Engine) GetProcessState(ctx context.Context, instanceID string) (core.ProcessState, error) {
	return e.backend.GetProcessInstanceState(ctx, instanceID)
}

// GetProcessResults returns the values of the output parameters of a finished process, in
// definition order. Values of restored processes are returned as converter.Payload, use
// GetProcessResult to decode them.
func (e *Engine) GetProcessResults(ctx context.Context, instanceID string) (_ []any, err error) {
	ctx, span := e.tracer.Start(ctx, "GetProcessResults", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, instanceID),
	))
	defer func() {
		tracing.WithSpanError(span, err)
		span.End()
	}()

	unlock := e.locks.Lock(instanceID)
	defer unlock()

	p, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if p.State() != core.ProcessStateFinished {
		return nil, backend.ErrInstanceNotFinished
	}

	return p.Results(ctx)
}

// WaitForProcess waits for the given process instance to finish or until the given timeout has
// expired.
func (e *Engine) WaitForProcess(ctx context.Context, instanceID string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = time.Second * 20
	}

	ctx, span := e.tracer.Start(ctx, "WaitForProcess", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, instanceID),
	))
	defer span.End()

	var finished <-chan struct{}
	if n, ok := e.backend.(backend.FinishNotifier); ok {
		c, release := n.NotifyFinished(instanceID)
		defer release()

		finished = c
	}

	ticker := newWaitTicker(e.clock, timeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-finished:
			return nil

		case _, ok := <-ticker.C:
			if !ok {
				return ErrWaitTimeout
			}

			s, err := e.backend.GetProcessInstanceState(ctx, instanceID)
			if err != nil {
				return fmt.Errorf("getting process state: %w", err)
			}

			if s == core.ProcessStateFinished {
				return nil
			}
		}
	}
}

// RemoveProcess removes a finished process instance.
func (e *Engine) RemoveProcess(ctx context.Context, instanceID string) (err error) {
	ctx, span := e.tracer.Start(ctx, "RemoveProcess", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, instanceID),
	))
	defer func() {
		tracing.WithSpanError(span, err)
		span.End()
	}()

	unlock := e.locks.Lock(instanceID)
	defer unlock()

	if err := e.backend.RemoveProcessInstance(ctx, instanceID); err != nil {
		return err
	}

	e.cache.Evict(instanceID)

	return nil
}

// RemoveProcesses removes finished process instances matching the given options.
func (e *Engine) RemoveProcesses(ctx context.Context, options ...backend.RemovalOption) error {
	return e.backend.RemoveProcessInstances(ctx, options...)
}

// Close stops the cache eviction. It does not close the backend.
func (e *Engine) Close() {
	e.cache.StopEviction()
}

// load returns the live process from the cache, or restores it from its persisted snapshot.
func (e *Engine) load(ctx context.Context, instanceID string) (*process.Process, error) {
	if p, ok := e.cache.Get(instanceID); ok {
		return p, nil
	}

	record, err := e.backend.GetProcessInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var s process.Snapshot
	if err := e.backend.Options().Converter.From(record.Snapshot, &s); err != nil {
		return nil, fmt.Errorf("decoding process snapshot: %w", err)
	}

	p, err := e.runtime.Restore(ctx, &s, e.options.ResultReceiver)
	if err != nil {
		return nil, fmt.Errorf("restoring process: %w", err)
	}

	e.cacheOrEvict(p)

	return p, nil
}

func (e *Engine) save(ctx context.Context, p *process.Process) error {
	record, err := e.record(ctx, p)
	if err != nil {
		return err
	}

	if err := e.backend.UpdateProcessInstance(ctx, record); err != nil {
		return fmt.Errorf("storing process instance: %w", err)
	}

	return nil
}

func (e *Engine) record(ctx context.Context, p *process.Process) (*backend.ProcessRecord, error) {
	s, err := p.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking process snapshot: %w", err)
	}

	payload, err := e.backend.Options().Converter.To(s)
	if err != nil {
		return nil, fmt.Errorf("encoding process snapshot: %w", err)
	}

	now := e.clock.Now()

	r := &backend.ProcessRecord{
		Instance:  p.Instance(),
		State:     s.State,
		Snapshot:  payload,
		UpdatedAt: now,
	}

	if s.State == core.ProcessStateFinished {
		r.CompletedAt = &now
	}

	r.Normalize()

	return r, nil
}

// cacheOrEvict keeps running processes in the cache. Finished processes are restored on demand.
func (e *Engine) cacheOrEvict(p *process.Process) {
	instanceID := p.Instance().InstanceID

	if p.State() == core.ProcessStateFinished {
		e.cache.Evict(instanceID)
		return
	}

	e.cache.Store(instanceID, p)
}

func (e *Engine) timer(operation string) *metrics.Timer {
	return metrics.NewTimer(e.metrics, e.clock, metrickeys.EngineOperation, metrics.Tags{metrickeys.Operation: operation})
}
