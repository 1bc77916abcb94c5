package engine

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-wfmc/process"
)

type Options struct {
	// ProcessCacheSize is the maximum number of live processes kept in memory. Processes not in the
	// cache are restored from the backend when a work item completes.
	ProcessCacheSize int

	// ProcessCacheTTL is the time after which an idle live process is evicted from the cache.
	ProcessCacheTTL time.Duration

	// ResultReceiver, if set, receives the output parameters of every process that finishes.
	ResultReceiver process.ResultReceiver

	// Clock is used for record timestamps and waiting. Defaults to the wall clock.
	Clock clock.Clock
}

var DefaultOptions = Options{
	ProcessCacheSize: 128,
	ProcessCacheTTL:  time.Second * 10,
	Clock:            clock.New(),
}

type Option func(*Options)

func WithProcessCacheSize(size int) Option {
	return func(o *Options) {
		o.ProcessCacheSize = size
	}
}

func WithProcessCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.ProcessCacheTTL = ttl
	}
}

func WithResultReceiver(receiver process.ResultReceiver) Option {
	return func(o *Options) {
		o.ResultReceiver = receiver
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	return options
}
