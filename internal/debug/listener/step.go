package listener

import (
	"sync/atomic"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Step handles the completion of a single step request. Only the first
// event suspends; the owner is told so it can delete the request.
type Step struct {
	queue      Enqueuer
	onComplete func(ev *event.Event)
	done       atomic.Bool
}

// NewStep creates a step listener. onComplete may be nil.
func NewStep(q Enqueuer, onComplete func(ev *event.Event)) *Step {
	return &Step{queue: q, onComplete: onComplete}
}

// Done reports whether the step has completed.
func (s *Step) Done() bool { return s.done.Load() }

// HandleEvent implements dispatch.Listener.
func (s *Step) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	if ev.Kind != event.Step || !s.done.CompareAndSwap(false, true) {
		return true
	}

	s.queue.Enqueue(model.New(model.Suspend, model.StepEnd, model.ThreadSource(ev.Thread)).
		OnThread(ev.Thread).
		With("location", ev.Location.String()))
	if s.onComplete != nil {
		s.onComplete(ev)
	}
	return false
}
