// Package listener provides the concrete event listeners a debug target
// registers with its dispatcher: breakpoints, watchpoints, method entry and
// exit, exceptions, steps, thread tracking, class preparation, and a Lua
// condition wrapper.
//
// Every listener votes on whether the event group may resume: true lets the
// debuggee continue, false keeps it suspended. Listeners that decide to keep
// the debuggee suspended enqueue a Suspend model event describing why.
//
// Listeners run on the dispatcher goroutine and must not block.
package listener

import (
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Enqueuer accepts model events for the group being dispatched.
// *dispatch.Dispatcher implements it.
type Enqueuer interface {
	Enqueue(model.Event)
}
