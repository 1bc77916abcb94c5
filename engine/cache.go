package engine

import (
	"context"
	"time"

	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/jellydator/ttlcache/v3"
)

// processCache keeps recently used live processes keyed by instance id.
type processCache struct {
	mc metrics.Client
	c  *ttlcache.Cache[string, *process.Process]
}

func newProcessCache(mc metrics.Client, size int, expiration time.Duration) *processCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, *process.Process](uint64(size)),
		ttlcache.WithTTL[string, *process.Process](expiration),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, *process.Process]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		default:
			return
		}

		mc.Counter(metrickeys.ProcessCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &processCache{
		mc: mc,
		c:  c,
	}
}

func (pc *processCache) Get(instanceID string) (*process.Process, bool) {
	i := pc.c.Get(instanceID)
	if i == nil {
		return nil, false
	}

	return i.Value(), true
}

func (pc *processCache) Store(instanceID string, p *process.Process) {
	pc.c.Set(instanceID, p, ttlcache.DefaultTTL)

	pc.mc.Gauge(metrickeys.ProcessCacheSize, metrics.Tags{}, int64(pc.c.Len()))
}

func (pc *processCache) Evict(instanceID string) {
	pc.c.Delete(instanceID)

	pc.mc.Gauge(metrickeys.ProcessCacheSize, metrics.Tags{}, int64(pc.c.Len()))
}

func (pc *processCache) Len() int {
	return pc.c.Len()
}

func (pc *processCache) StartEviction() {
	go pc.c.Start()
}

func (pc *processCache) StopEviction() {
	pc.c.Stop()
}
