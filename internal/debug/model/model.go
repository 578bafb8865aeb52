// Package model defines the debug-model notifications produced while the
// dispatcher processes event groups, and the sinks they are published to.
package model

import (
	"fmt"
	"time"
)

// Kind is the broad category of a model event.
type Kind int

const (
	// Create reports that a model element came into existence.
	Create Kind = iota
	// Terminate reports that a model element ended.
	Terminate
	// Suspend reports that a model element stopped executing.
	Suspend
	// Resume reports that a model element continued executing.
	Resume
	// Change reports that a model element's state changed.
	Change
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Terminate:
		return "terminate"
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	case Change:
		return "change"
	default:
		return "unknown"
	}
}

// Detail refines a Kind with the reason it happened.
type Detail int

const (
	// Unspecified carries no extra reason.
	Unspecified Detail = iota
	// BreakpointHit means a breakpoint was hit.
	BreakpointHit
	// StepEnd means a step completed.
	StepEnd
	// ClientRequest means the client asked for the change.
	ClientRequest
	// ExceptionThrown means an exception was thrown.
	ExceptionThrown
	// WatchpointHit means a watched field was accessed or modified.
	WatchpointHit
	// MethodEntered means a method entry or exit was reported.
	MethodEntered
	// ThreadStarted means a thread started.
	ThreadStarted
	// ThreadEnded means a thread ended.
	ThreadEnded
)

// String returns the detail name.
func (d Detail) String() string {
	switch d {
	case Unspecified:
		return "unspecified"
	case BreakpointHit:
		return "breakpoint"
	case StepEnd:
		return "stepEnd"
	case ClientRequest:
		return "clientRequest"
	case ExceptionThrown:
		return "exception"
	case WatchpointHit:
		return "watchpoint"
	case MethodEntered:
		return "methodEntry"
	case ThreadStarted:
		return "threadStart"
	case ThreadEnded:
		return "threadDeath"
	default:
		return "unknown"
	}
}

// Event is one debug-model notification.
type Event struct {
	Kind   Kind
	Detail Detail

	// Source names the model element the event is about, e.g. the target
	// name or "thread-7".
	Source string

	// Thread is the remote thread involved, or zero.
	Thread int64

	Time time.Time
	Data map[string]any
}

// New creates a model event stamped with the current time.
func New(kind Kind, detail Detail, source string) Event {
	return Event{
		Kind:   kind,
		Detail: detail,
		Source: source,
		Time:   time.Now(),
	}
}

// With returns a copy of the event with key set in its data.
func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// OnThread returns a copy of the event bound to a thread.
func (e Event) OnThread(thread int64) Event {
	e.Thread = thread
	return e
}

// String returns a short description for logs.
func (e Event) String() string {
	return fmt.Sprintf("%s/%s %s", e.Kind, e.Detail, e.Source)
}

// Sink receives the batch of model events produced for one event group.
// Publish is called exactly once per processed group, possibly with an
// empty batch.
type Sink interface {
	Publish(batch []Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(batch []Event)

// Publish calls f(batch).
func (f SinkFunc) Publish(batch []Event) { f(batch) }

// Discard is a sink that drops every batch.
var Discard Sink = SinkFunc(func([]Event) {})

// Tee returns a sink that publishes each batch to every sink in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(batch []Event) {
		for _, s := range sinks {
			s.Publish(batch)
		}
	})
}

// ThreadSource returns the Source name used for events about a thread.
func ThreadSource(thread int64) string {
	return fmt.Sprintf("thread-%d", thread)
}
