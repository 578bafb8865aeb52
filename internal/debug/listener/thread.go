package listener

import (
	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Thread reports thread start and death as model events. It never keeps
// the debuggee suspended.
type Thread struct {
	queue    Enqueuer
	onChange func(thread int64, alive bool)
}

// NewThread creates a thread listener. onChange may be nil.
func NewThread(q Enqueuer, onChange func(thread int64, alive bool)) *Thread {
	return &Thread{queue: q, onChange: onChange}
}

// HandleEvent implements dispatch.Listener.
func (t *Thread) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	var alive bool
	switch ev.Kind {
	case event.ThreadStart:
		alive = true
		t.queue.Enqueue(model.New(model.Create, model.ThreadStarted, model.ThreadSource(ev.Thread)).OnThread(ev.Thread))
	case event.ThreadDeath:
		t.queue.Enqueue(model.New(model.Terminate, model.ThreadEnded, model.ThreadSource(ev.Thread)).OnThread(ev.Thread))
	default:
		return true
	}
	if t.onChange != nil {
		t.onChange(ev.Thread, alive)
	}
	return true
}
