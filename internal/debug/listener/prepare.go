package listener

import (
	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
)

// ClassPrepare notifies a callback when a class is prepared, typically to
// install breakpoints deferred until the class was loaded.
type ClassPrepare struct {
	onPrepare func(class string)
}

// NewClassPrepare creates a class-prepare listener.
func NewClassPrepare(onPrepare func(class string)) *ClassPrepare {
	return &ClassPrepare{onPrepare: onPrepare}
}

// HandleEvent implements dispatch.Listener.
func (c *ClassPrepare) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	if ev.Kind == event.ClassPrepare && c.onPrepare != nil {
		c.onPrepare(ev.Location.Class)
	}
	return true
}
