package metrics

import "time"

// Tags are attached to a metric as key/value pairs. Keys are defined in internal/metrickeys.
type Tags map[string]string

// Client reports the metrics of the runtime, the engine, the worker and the backends.
type Client interface {
	// Counter increments the counter name by value.
	Counter(name string, tags Tags, value int64)

	Distribution(name string, tags Tags, value float64)

	// Gauge sets the current value of name.
	Gauge(name string, tags Tags, value int64)

	Timing(name string, tags Tags, duration time.Duration)

	// WithTags returns a client that adds tags to every reported metric.
	WithTags(tags Tags) Client
}
