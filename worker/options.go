package worker

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

type Options struct {
	// Name identifies the worker in logs. Defaults to a random id.
	Name string

	// MaxParallelTasks determines the maximum number of concurrent applications executed by the
	// worker. The default is 0 which is no limit.
	MaxParallelTasks int

	// MaxAttempts is the number of times an application is executed before its work item is
	// considered failed. Defaults to 3.
	MaxAttempts int

	// RetryInitialInterval is the delay before the first retry. Defaults to 100ms.
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the delay between retries. Defaults to 10 seconds.
	RetryMaxInterval time.Duration

	// ErrorHandler is called for work items that could not be executed or completed.
	ErrorHandler func(ctx context.Context, f *Failure)

	// Clock is used for retry backoff and timing metrics. Defaults to the wall clock.
	Clock clock.Clock
}

var DefaultOptions = Options{
	MaxParallelTasks:     0,
	MaxAttempts:          3,
	RetryInitialInterval: 100 * time.Millisecond,
	RetryMaxInterval:     10 * time.Second,
}
