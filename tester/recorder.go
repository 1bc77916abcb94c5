package tester

import (
	"context"
	"fmt"
	"sync"

	"github.com/cschleiden/go-wfmc/process"
)

// Recorder is a process.Sink that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []process.Event
}

var _ process.Sink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, e process.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *Recorder) Events() []process.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]process.Event(nil), r.events...)
}

// Log returns the string form of every recorded event.
func (r *Recorder) Log() []string {
	events := r.Events()

	log := make([]string, 0, len(events))
	for _, e := range events {
		log = append(log, fmt.Sprint(e))
	}

	return log
}

func (r *Recorder) Types() []process.EventType {
	events := r.Events()

	types := make([]process.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type())
	}

	return types
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
