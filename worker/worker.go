package worker

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/go-wfmc/converter"
	"github.com/cschleiden/go-wfmc/engine"
	"github.com/cschleiden/go-wfmc/internal/args"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	internal "github.com/cschleiden/go-wfmc/internal/worker"
	"github.com/cschleiden/go-wfmc/internal/workflowerrors"
	"github.com/cschleiden/go-wfmc/log"
	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/cschleiden/go-wfmc/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Worker executes the applications of work items asynchronously and reports their results to
// the engine.
type Worker struct {
	engine   *engine.Engine
	registry *registry.Registry
	options  *Options

	clock     clock.Clock
	converter converter.Converter
	logger    *slog.Logger
	metrics   metrics.Client
	tracer    trace.Tracer

	pool *internal.Worker[task]
}

type task struct {
	instanceID  string
	activityID  int
	workItemID  int
	application string
	fn          any
	args        []any
}

// New creates a worker. Applications registered with the worker are resolved through r, which
// should be the resolver of the engine's runtime.
func New(e *engine.Engine, r *registry.Registry, options *Options) *Worker {
	if options == nil {
		options = &DefaultOptions
	}

	o := *options
	if o.Name == "" {
		o.Name = uuid.NewString()
	}

	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}

	if o.Clock == nil {
		o.Clock = clock.New()
	}

	b := e.Backend()

	w := &Worker{
		engine:   e,
		registry: r,
		options:  &o,

		clock:     o.Clock,
		converter: b.Options().Converter,
		logger:    b.Options().Logger.With(log.WorkerNameKey, o.Name),
		metrics:   b.Metrics(),
		tracer:    b.Tracer(),
	}

	w.pool = internal.NewWorker(w.logger, w.handle, internal.WorkerOptions{
		MaxParallelTasks: o.MaxParallelTasks,
	})

	return w
}

// Start starts the worker.
//
// To stop the worker, cancel the context passed to Start. To wait for completion of the active
// tasks, call `WaitForCompletion`.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.pool.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	return nil
}

// WaitForCompletion waits for all active tasks to complete.
func (w *Worker) WaitForCompletion() error {
	if err := w.pool.WaitForCompletion(); err != nil {
		return fmt.Errorf("waiting for worker completion: %w", err)
	}

	return nil
}

// RegisterApplication registers fn as the implementation of the application with the given id
// for all process definitions.
//
// fn receives the application's input parameters in formal order, optionally preceded by a
// context.Context, and returns the output parameters in formal order followed by an error.
func (w *Worker) RegisterApplication(application string, fn any) error {
	return w.register("."+application, application, fn)
}

// RegisterDefinitionApplication registers fn as the implementation of the application with the
// given id for a single process definition. It takes precedence over RegisterApplication.
func (w *Worker) RegisterDefinitionApplication(definitionID, application string, fn any) error {
	return w.register(definitionID+"."+application, application, fn)
}

func (w *Worker) register(name, application string, fn any) error {
	if err := args.ValidateFunc(fn); err != nil {
		return fmt.Errorf("registering application %q: %w", application, err)
	}

	return w.registry.RegisterWorkItem(name, func(p process.Participant) process.WorkItem {
		return &WorkItem{
			worker:      w,
			participant: p,
			application: application,
			fn:          fn,
		}
	})
}

func (w *Worker) enqueue(ctx context.Context, t *task) error {
	if err := w.pool.Enqueue(t); err != nil {
		return err
	}

	w.metrics.Gauge(metrickeys.WorkerQueueSize, metrics.Tags{}, int64(w.pool.QueueSize()))

	w.logger.DebugContext(ctx, "queued work item",
		log.InstanceIDKey, t.instanceID,
		log.ActivityIDKey, t.activityID,
		log.WorkItemIDKey, t.workItemID,
		log.ApplicationKey, t.application,
	)

	return nil
}

func (w *Worker) handle(ctx context.Context, t *task) {
	ctx, span := w.tracer.Start(ctx, "Worker.ExecuteApplication", trace.WithAttributes(
		attribute.String(tracing.ProcessInstanceID, t.instanceID),
		attribute.Int(tracing.ActivityID, t.activityID),
		attribute.Int(tracing.WorkItemID, t.workItemID),
		attribute.String(tracing.Application, t.application),
	))
	defer span.End()

	tags := metrics.Tags{metrickeys.Application: t.application}

	timer := metrics.NewTimer(w.metrics, w.clock, metrickeys.WorkerTaskDuration, tags)
	results, attempts, err := w.executeWithRetries(ctx, t)
	timer.Stop()

	if err == nil {
		err = w.engine.CompleteWorkItem(ctx, t.instanceID, t.activityID, t.workItemID, results...)
		if err != nil {
			err = fmt.Errorf("completing work item: %w", err)
		}
	}

	if err != nil {
		tracing.WithSpanError(span, err)

		w.metrics.Counter(metrickeys.WorkerTaskProcessed, metrics.Tags{
			metrickeys.Application: t.application,
			metrickeys.Status:      "failed",
		}, 1)

		w.logger.ErrorContext(ctx, "work item failed",
			log.InstanceIDKey, t.instanceID,
			log.ActivityIDKey, t.activityID,
			log.WorkItemIDKey, t.workItemID,
			log.ApplicationKey, t.application,
			log.AttemptKey, attempts,
			"error", err,
		)

		if w.options.ErrorHandler != nil {
			w.options.ErrorHandler(ctx, &Failure{
				InstanceID:  t.instanceID,
				ActivityID:  t.activityID,
				WorkItemID:  t.workItemID,
				Application: t.application,
				Attempts:    attempts,
				Err:         err,
			})
		}

		return
	}

	w.metrics.Counter(metrickeys.WorkerTaskProcessed, metrics.Tags{
		metrickeys.Application: t.application,
		metrickeys.Status:      "succeeded",
	}, 1)
}

// executeWithRetries runs the application until it succeeds, fails with a permanent error, or
// the attempts are exhausted.
func (w *Worker) executeWithRetries(ctx context.Context, t *task) ([]any, int, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.options.RetryInitialInterval
	eb.MaxInterval = w.options.RetryMaxInterval
	eb.MaxElapsedTime = 0
	eb.Clock = w.clock
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(w.options.MaxAttempts-1)), ctx)

	var results []any
	attempts := 0

	err := backoff.RetryNotify(func() error {
		attempts++

		r, err := w.execute(ctx, t)
		if err != nil {
			if !workflowerrors.CanRetry(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		results = r
		return nil
	}, b, func(err error, d time.Duration) {
		w.logger.WarnContext(ctx, "application failed, retrying",
			log.InstanceIDKey, t.instanceID,
			log.ApplicationKey, t.application,
			log.AttemptKey, attempts,
			"retry_in", d,
			"error", err,
		)
	})

	return results, attempts, err
}

func (w *Worker) execute(ctx context.Context, t *task) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = workflowerrors.NewPanicError(fmt.Sprintf("panic: %v", r))
		}
	}()

	fn := reflect.ValueOf(t.fn)

	argValues, addContext, err := args.InputsToArgs(w.converter, fn, t.args)
	if err != nil {
		return nil, workflowerrors.NewPermanentError(fmt.Errorf("converting arguments: %w", err))
	}

	if addContext {
		argValues[0] = reflect.ValueOf(ctx)
	}

	return args.OutputsToResults(fn.Call(argValues))
}
