package prometheus

import (
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, opts ...Option) (*Client, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	return New(append([]Option{WithRegisterer(reg)}, opts...)...), reg
}

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}

	t.Fatalf("metric %q not found", name)
	return nil
}

func Test_Client_Counter(t *testing.T) {
	c, reg := newClient(t)

	c.Counter(metrickeys.ProcessCreated, metrics.Tags{metrickeys.DefinitionID: "calc"}, 1)
	c.Counter(metrickeys.ProcessCreated, metrics.Tags{metrickeys.DefinitionID: "calc"}, 2)
	c.Counter(metrickeys.ProcessCreated, metrics.Tags{metrickeys.DefinitionID: "route"}, 1)

	f := c.families["wfmc_process_created_total"]
	require.NotNil(t, f)
	require.Equal(t, []string{"definition"}, f.labels)

	cv := f.collector.(*prometheus.CounterVec)
	require.Equal(t, float64(3), testutil.ToFloat64(cv.WithLabelValues("calc")))
	require.Equal(t, float64(1), testutil.ToFloat64(cv.WithLabelValues("route")))

	mf := gather(t, reg, "wfmc_process_created_total")
	require.Equal(t, dto.MetricType_COUNTER, mf.GetType())
	require.Len(t, mf.GetMetric(), 2)
}

func Test_Client_Gauge(t *testing.T) {
	c, reg := newClient(t)

	c.Gauge(metrickeys.ProcessCacheSize, metrics.Tags{}, 10)
	c.Gauge(metrickeys.ProcessCacheSize, metrics.Tags{}, 4)

	mf := gather(t, reg, "wfmc_process_cache_size")
	require.Equal(t, dto.MetricType_GAUGE, mf.GetType())
	require.Equal(t, float64(4), mf.GetMetric()[0].GetGauge().GetValue())
}

func Test_Client_Timing(t *testing.T) {
	c, reg := newClient(t, WithBuckets(0.1, 1))

	c.Timing(metrickeys.WorkerTaskDuration, metrics.Tags{metrickeys.Application: "add"}, 50*time.Millisecond)
	c.Timing(metrickeys.WorkerTaskDuration, metrics.Tags{metrickeys.Application: "add"}, 2*time.Second)

	mf := gather(t, reg, "wfmc_worker_task_duration_seconds")
	require.Equal(t, dto.MetricType_HISTOGRAM, mf.GetType())

	h := mf.GetMetric()[0].GetHistogram()
	require.Equal(t, uint64(2), h.GetSampleCount())
	require.InDelta(t, 2.05, h.GetSampleSum(), 0.0001)
	require.Equal(t, uint64(1), h.GetBucket()[0].GetCumulativeCount())
}

func Test_Client_Distribution(t *testing.T) {
	c, reg := newClient(t)

	c.Distribution("wfmc.payload.size", metrics.Tags{}, 42)

	mf := gather(t, reg, "wfmc_payload_size")
	require.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
}

func Test_Client_WithTags(t *testing.T) {
	c, reg := newClient(t)

	bc := c.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
	bc.Counter(metrickeys.EngineOperation, metrics.Tags{metrickeys.Operation: "CreateProcess"}, 1)

	// Unknown tags are dropped, missing tags are empty
	c.Counter(metrickeys.EngineOperation, metrics.Tags{metrickeys.Status: "ok"}, 1)

	mf := gather(t, reg, "wfmc_engine_operation_total")
	require.Len(t, mf.GetMetric(), 2)

	f := c.families["wfmc_engine_operation_total"]
	require.Equal(t, []string{"backend", "operation"}, f.labels)

	cv := f.collector.(*prometheus.CounterVec)
	require.Equal(t, float64(1), testutil.ToFloat64(cv.WithLabelValues("redis", "CreateProcess")))
	require.Equal(t, float64(1), testutil.ToFloat64(cv.WithLabelValues("", "")))
}

func Test_Client_Namespace(t *testing.T) {
	c, reg := newClient(t, WithNamespace("app"))

	c.Counter(metrickeys.ProcessFinished, nil, 1)

	gather(t, reg, "app_wfmc_process_finished_total")
}

func Test_Client_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	c1 := New(WithRegisterer(reg))
	c2 := New(WithRegisterer(reg))

	c1.Counter(metrickeys.ProcessStarted, nil, 1)
	c2.Counter(metrickeys.ProcessStarted, nil, 1)

	mf := gather(t, reg, "wfmc_process_started_total")
	require.Equal(t, float64(2), mf.GetMetric()[0].GetCounter().GetValue())
}

func Test_sanitize(t *testing.T) {
	require.Equal(t, "wfmc_worker_task_processed", sanitize("wfmc.worker.task.processed"))
	require.Equal(t, "a_b_c", sanitize("a-b c"))
}
