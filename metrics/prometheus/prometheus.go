// Package prometheus reports engine metrics to Prometheus.
//
// Metric names are derived from the metric keys by replacing every character that is not valid
// in a Prometheus name with an underscore. Counters get a "_total" suffix, timings are observed in
// seconds and get a "_seconds" suffix. The label names of a metric are fixed by its first use;
// tags that are missing later are reported as empty labels and unknown tags are dropped.
package prometheus

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type Client struct {
	*collectors

	tags metrics.Tags
}

var _ metrics.Client = (*Client)(nil)

// New creates a client. Collectors are created and registered on first use of a metric.
func New(opts ...Option) *Client {
	options := ApplyOptions(opts...)

	return &Client{
		collectors: &collectors{
			options:  options,
			families: make(map[string]*family),
		},
		tags: metrics.Tags{},
	}
}

func (c *Client) Counter(name string, tags metrics.Tags, value int64) {
	tags = c.merge(tags)

	f, ok := c.family(name+"_total", tags, func(namespace, name string, labels []string) prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: name}, labels)
	})
	if !ok {
		return
	}

	f.collector.(*prometheus.CounterVec).WithLabelValues(f.values(tags)...).Add(float64(value))
}

func (c *Client) Distribution(name string, tags metrics.Tags, value float64) {
	c.observe(name, tags, value)
}

func (c *Client) Gauge(name string, tags metrics.Tags, value int64) {
	tags = c.merge(tags)

	f, ok := c.family(name, tags, func(namespace, name string, labels []string) prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: name}, labels)
	})
	if !ok {
		return
	}

	f.collector.(*prometheus.GaugeVec).WithLabelValues(f.values(tags)...).Set(float64(value))
}

func (c *Client) Timing(name string, tags metrics.Tags, duration time.Duration) {
	c.observe(name+"_seconds", tags, duration.Seconds())
}

// WithTags returns a client that adds tags to every metric. The returned client shares the
// collectors of c.
func (c *Client) WithTags(tags metrics.Tags) metrics.Client {
	return &Client{
		collectors: c.collectors,
		tags:       c.merge(tags),
	}
}

func (c *Client) observe(name string, tags metrics.Tags, value float64) {
	tags = c.merge(tags)

	f, ok := c.family(name, tags, func(namespace, name string, labels []string) prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      name,
			Buckets:   c.options.Buckets,
		}, labels)
	})
	if !ok {
		return
	}

	f.collector.(*prometheus.HistogramVec).WithLabelValues(f.values(tags)...).Observe(value)
}

func (c *Client) merge(tags metrics.Tags) metrics.Tags {
	merged := make(metrics.Tags, len(c.tags)+len(tags))
	for k, v := range c.tags {
		merged[k] = v
	}

	for k, v := range tags {
		merged[k] = v
	}

	return merged
}

type collectors struct {
	options Options

	mu       sync.Mutex
	families map[string]*family
}

type family struct {
	labels    []string
	collector prometheus.Collector
}

func (f *family) values(tags metrics.Tags) []string {
	byLabel := make(map[string]string, len(tags))
	for k, v := range tags {
		byLabel[sanitize(k)] = v
	}

	values := make([]string, len(f.labels))
	for i, l := range f.labels {
		values[i] = byLabel[l]
	}

	return values
}

// family returns the collector for a metric name, creating and registering it if necessary.
func (cs *collectors) family(name string, tags metrics.Tags, create func(namespace, name string, labels []string) prometheus.Collector) (*family, bool) {
	name = sanitize(name)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if f, ok := cs.families[name]; ok {
		return f, true
	}

	labels := make([]string, 0, len(tags))
	for k := range tags {
		labels = append(labels, sanitize(k))
	}
	sort.Strings(labels)

	collector := create(cs.options.Namespace, name, labels)

	if err := cs.options.Registerer.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			cs.options.Logger.Error("could not register metric", "metric", name, "error", err)
			return nil, false
		}

		collector = are.ExistingCollector
	}

	f := &family{labels: labels, collector: collector}
	cs.families[name] = f

	return f, true
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
