package listener

import (
	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Watchpoint suspends the debuggee when a field is read or written.
type Watchpoint struct {
	queue        Enqueuer
	field        string
	access       bool
	modification bool
}

// NewWatchpoint creates a watchpoint. An empty field matches any field the
// remote request reports.
func NewWatchpoint(q Enqueuer, field string, access, modification bool) *Watchpoint {
	return &Watchpoint{
		queue:        q,
		field:        field,
		access:       access,
		modification: modification,
	}
}

// HandleEvent implements dispatch.Listener.
func (w *Watchpoint) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	switch ev.Kind {
	case event.AccessWatchpoint:
		if !w.access {
			return true
		}
	case event.ModificationWatchpoint:
		if !w.modification {
			return true
		}
	default:
		return true
	}
	if w.field != "" && ev.Field != w.field {
		return true
	}

	e := model.New(model.Suspend, model.WatchpointHit, model.ThreadSource(ev.Thread)).
		OnThread(ev.Thread).
		With("field", ev.Field).
		With("access", ev.Kind == event.AccessWatchpoint)
	if ev.Kind == event.ModificationWatchpoint {
		e = e.With("old", ev.OldValue).With("new", ev.Value)
	} else {
		e = e.With("value", ev.Value)
	}
	w.queue.Enqueue(e)
	return false
}
