package redis

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var _ backend.Backend = (*redisBackend)(nil)

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	// Default options
	options := &RedisOptions{
		Options: backend.ApplyOptions(),
	}

	for _, opt := range opts {
		opt(options)
	}

	rb := &redisBackend{
		rdb:     client,
		options: options,
		keys:    newKeys(options.KeyPrefix),
	}

	// Preload scripts here. Usually redis-go attempts to execute them first, and if redis doesn't know
	// them, loads them. This doesn't work when using (transactional) pipelines, so eagerly load them on startup.
	ctx := context.Background()
	cmds := map[string]*redis.StringCmd{
		"createInstanceCmd": createInstanceCmd.Load(ctx, rb.rdb),
		"updateInstanceCmd": updateInstanceCmd.Load(ctx, rb.rdb),
		"deleteInstanceCmd": deleteInstanceCmd.Load(ctx, rb.rdb),
		"expireCmd":         expireCmd.Load(ctx, rb.rdb),
		"purgeExpiredCmd":   purgeExpiredCmd.Load(ctx, rb.rdb),
	}
	for name, cmd := range cmds {
		if cmd.Err() != nil {
			return nil, fmt.Errorf("loading redis script: %v %w", name, cmd.Err())
		}
	}

	return rb, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	options *RedisOptions
	keys    *keys
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Tracer() trace.Tracer {
	return tracing.Tracer(rb.options.TracerProvider)
}

func (rb *redisBackend) Options() *backend.Options {
	return &rb.options.Options
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}
