package metrics

import (
	"time"

	m "github.com/cschleiden/go-wfmc/metrics"
)

// noopClient discards all metrics. It is the default when no client is configured.
type noopClient struct{}

var noop = &noopClient{}

func NewNoopMetricsClient() m.Client {
	return noop
}

func (*noopClient) Counter(string, m.Tags, int64) {}

func (*noopClient) Distribution(string, m.Tags, float64) {}

func (*noopClient) Gauge(string, m.Tags, int64) {}

func (*noopClient) Timing(string, m.Tags, time.Duration) {}

func (c *noopClient) WithTags(m.Tags) m.Client {
	return c
}
