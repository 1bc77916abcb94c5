package redis

import (
	"time"

	"github.com/cschleiden/go-wfmc/backend"
)

type RedisOptions struct {
	backend.Options

	AutoExpiration time.Duration

	KeyPrefix string
}

type RedisBackendOption func(*RedisOptions)

func WithBackendOptions(opts ...backend.BackendOption) RedisBackendOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(&o.Options)
		}
	}
}

// WithAutoExpiration sets the duration after which finished instances will expire from the data store.
// If set to 0 (default), instances will never expire and need to be manually removed.
func WithAutoExpiration(expireFinishedInstancesAfter time.Duration) RedisBackendOption {
	return func(o *RedisOptions) {
		o.AutoExpiration = expireFinishedInstancesAfter
	}
}

// WithKeyPrefix sets the prefix for all keys used by the backend. A `:` is appended if missing.
func WithKeyPrefix(keyPrefix string) RedisBackendOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = keyPrefix
	}
}
