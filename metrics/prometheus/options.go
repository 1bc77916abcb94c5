package prometheus

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	// Registerer the collectors are registered with. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace is prepended to every metric name.
	Namespace string

	// Buckets used for timings, in seconds, and distributions.
	Buckets []float64

	Logger *slog.Logger
}

var DefaultOptions = Options{
	Buckets: prometheus.DefBuckets,
}

type Option func(*Options)

func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = r
	}
}

func WithNamespace(namespace string) Option {
	return func(o *Options) {
		o.Namespace = namespace
	}
}

func WithBuckets(buckets ...float64) Option {
	return func(o *Options) {
		o.Buckets = buckets
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Registerer == nil {
		options.Registerer = prometheus.DefaultRegisterer
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return options
}
