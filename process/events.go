package process

import (
	"context"
	"fmt"
)

type EventType int

const (
	EventType_ProcessStarted EventType = iota
	EventType_Transition
	EventType_ActivityStarted
	EventType_WorkItemFinished
	EventType_ActivityFinished
	EventType_ProcessFinished
)

func (et EventType) String() string {
	switch et {
	case EventType_ProcessStarted:
		return "ProcessStarted"
	case EventType_Transition:
		return "Transition"
	case EventType_ActivityStarted:
		return "ActivityStarted"
	case EventType_WorkItemFinished:
		return "WorkItemFinished"
	case EventType_ActivityFinished:
		return "ActivityFinished"
	case EventType_ProcessFinished:
		return "ProcessFinished"
	}

	return fmt.Sprintf("EventType(%d)", int(et))
}

// Event is a lifecycle notification emitted by a running process.
type Event interface {
	Type() EventType

	event()
}

type ProcessStarted struct {
	Process *Process
}

type Transition struct {
	// From is nil for the transition that starts the process.
	From *Activity
	To   *Activity
}

type ActivityStarted struct {
	Activity *Activity
}

type WorkItemFinished struct {
	WorkItem    WorkItem
	Application string
	Parameters  []string
	Results     []any
}

type ActivityFinished struct {
	Activity *Activity
}

type ProcessFinished struct {
	Process *Process
}

func (ProcessStarted) Type() EventType   { return EventType_ProcessStarted }
func (Transition) Type() EventType       { return EventType_Transition }
func (ActivityStarted) Type() EventType  { return EventType_ActivityStarted }
func (WorkItemFinished) Type() EventType { return EventType_WorkItemFinished }
func (ActivityFinished) Type() EventType { return EventType_ActivityFinished }
func (ProcessFinished) Type() EventType  { return EventType_ProcessFinished }

func (ProcessStarted) event()   {}
func (Transition) event()       {}
func (ActivityStarted) event()  {}
func (WorkItemFinished) event() {}
func (ActivityFinished) event() {}
func (ProcessFinished) event()  {}

func (e ProcessStarted) String() string {
	return fmt.Sprintf("ProcessStarted(%v)", e.Process)
}

func (e Transition) String() string {
	from := "None"
	if e.From != nil {
		from = e.From.String()
	}

	return fmt.Sprintf("Transition(%v, %v)", from, e.To)
}

func (e ActivityStarted) String() string {
	return fmt.Sprintf("ActivityStarted(%v)", e.Activity)
}

func (e WorkItemFinished) String() string {
	return fmt.Sprintf("WorkItemFinished(%q)", e.Application)
}

func (e ActivityFinished) String() string {
	return fmt.Sprintf("ActivityFinished(%v)", e.Activity)
}

func (e ProcessFinished) String() string {
	return fmt.Sprintf("ProcessFinished(%v)", e.Process)
}

// Sink receives lifecycle events. Notify is called while the emitting process is locked and
// must not call back into that process.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Notify(ctx context.Context, e Event) {
	f(ctx, e)
}

type noopSink struct{}

func (noopSink) Notify(context.Context, Event) {}

// NoopSink discards all events.
var NoopSink Sink = noopSink{}

type multiSink []Sink

// MultiSink delivers every event to all given sinks, in order.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (ms multiSink) Notify(ctx context.Context, e Event) {
	for _, s := range ms {
		s.Notify(ctx, e)
	}
}
