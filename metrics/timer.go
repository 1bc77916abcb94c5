package metrics

import (
	"time"

	"github.com/benbjohnson/clock"
)

type Timer struct {
	client Client
	clock  clock.Clock
	start  time.Time
	name   string
	tags   Tags
}

// NewTimer starts a timer using the given clock.
func NewTimer(client Client, c clock.Clock, name string, tags Tags) *Timer {
	return &Timer{
		client: client,
		clock:  c,
		start:  c.Now(),
		name:   name,
		tags:   tags,
	}
}

// Stop the timer and report the elapsed time as a timing metric
func (t *Timer) Stop() {
	t.client.Timing(t.name, t.tags, t.clock.Since(t.start))
}
