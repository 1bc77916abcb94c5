package engine

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
)

// newWaitTicker returns a ticker with exponentially growing intervals. Its channel is closed
// once timeout has elapsed.
func newWaitTicker(c clock.Clock, timeout time.Duration) *backoff.Ticker {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               c,
	}
	b.Reset()

	return backoff.NewTicker(b)
}
