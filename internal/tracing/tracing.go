package tracing

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name used for all spans.
const TracerName = "go-wfmc"

// Tracer returns the package tracer from the given provider, falling back to a noop tracer.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	return tp.Tracer(TracerName)
}
