package process

import (
	"log/slog"

	mi "github.com/cschleiden/go-wfmc/internal/metrics"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Sink receives lifecycle events of all processes created by the runtime.
	Sink Sink
}

var DefaultOptions = Options{
	Logger:         slog.Default(),
	Metrics:        mi.NewNoopMetricsClient(),
	TracerProvider: noop.NewTracerProvider(),
	Sink:           NoopSink,
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithSink sets the event sink. Use MultiSink to notify several sinks.
func WithSink(sink Sink) Option {
	return func(o *Options) {
		o.Sink = sink
	}
}

func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Sink == nil {
		options.Sink = NoopSink
	}

	return options
}
