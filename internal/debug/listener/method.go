package listener

import (
	"path"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Method suspends the debuggee on entry to or exit from matching methods.
type Method struct {
	queue   Enqueuer
	pattern string
}

// NewMethod creates a method listener. The pattern uses path.Match syntax
// against the method name; an empty pattern matches every method.
func NewMethod(q Enqueuer, pattern string) (*Method, error) {
	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, err
		}
	}
	return &Method{queue: q, pattern: pattern}, nil
}

// HandleEvent implements dispatch.Listener.
func (m *Method) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	if ev.Kind != event.MethodEntry && ev.Kind != event.MethodExit {
		return true
	}
	if m.pattern != "" {
		if ok, _ := path.Match(m.pattern, ev.Location.Method); !ok {
			return true
		}
	}

	m.queue.Enqueue(model.New(model.Suspend, model.MethodEntered, model.ThreadSource(ev.Thread)).
		OnThread(ev.Thread).
		With("method", ev.Location.String()).
		With("exit", ev.Kind == event.MethodExit))
	return false
}
