package listener

import (
	"path"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Exception suspends the debuggee when a matching exception is thrown.
type Exception struct {
	queue    Enqueuer
	pattern  string
	caught   bool
	uncaught bool
}

// NewException creates an exception listener. The pattern uses path.Match
// syntax against the exception class; empty matches every class.
func NewException(q Enqueuer, pattern string, caught, uncaught bool) (*Exception, error) {
	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, err
		}
	}
	return &Exception{queue: q, pattern: pattern, caught: caught, uncaught: uncaught}, nil
}

// HandleEvent implements dispatch.Listener.
func (x *Exception) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	info := ev.Exception
	if ev.Kind != event.Exception || info == nil {
		return true
	}
	if (info.Caught && !x.caught) || (!info.Caught && !x.uncaught) {
		return true
	}
	if x.pattern != "" {
		if ok, _ := path.Match(x.pattern, info.Class); !ok {
			return true
		}
	}

	x.queue.Enqueue(model.New(model.Suspend, model.ExceptionThrown, model.ThreadSource(ev.Thread)).
		OnThread(ev.Thread).
		With("exception", info.Class).
		With("message", info.Message).
		With("caught", info.Caught).
		With("location", ev.Location.String()))
	return false
}
