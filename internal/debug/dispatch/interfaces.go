package dispatch

import (
	"context"

	"github.com/dshills/remotedebug/internal/debug/event"
)

// Connection is the remote side of a debug session as the dispatcher sees it.
type Connection interface {
	// Receive blocks until the next group arrives. It returns an error once
	// the connection is lost or ctx is done.
	Receive(ctx context.Context) (*event.Group, error)

	// Resume lets the threads suspended by group continue.
	Resume(ctx context.Context, group *event.Group) error
}

// Target receives lifecycle callbacks. The dispatcher invokes them
// synchronously on its loop goroutine.
type Target interface {
	OnStart(ev *event.Event)
	OnDeath(ev *event.Event)
	OnDisconnect(ev *event.Event)
}

// Listener handles events for the requests it was registered with.
// HandleEvent returns true if the listener is willing to let the group
// resume.
type Listener interface {
	HandleEvent(ev *event.Event, target Target) bool
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ev *event.Event, target Target) bool

// HandleEvent calls f(ev, target).
func (f ListenerFunc) HandleEvent(ev *event.Event, target Target) bool {
	return f(ev, target)
}
