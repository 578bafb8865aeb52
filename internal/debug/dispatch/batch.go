package dispatch

import (
	"github.com/eapache/queue"

	"github.com/dshills/remotedebug/internal/debug/model"
)

// batch accumulates model events while one group is processed.
// It has a single writer: the loop goroutine.
type batch struct {
	q *queue.Queue
}

func newBatch() *batch {
	return &batch{q: queue.New()}
}

func (b *batch) add(e model.Event) {
	b.q.Add(e)
}

func (b *batch) len() int {
	return b.q.Length()
}

// drain empties the batch and returns its contents in insertion order.
func (b *batch) drain() []model.Event {
	out := make([]model.Event, 0, b.q.Length())
	for b.q.Length() > 0 {
		out = append(out, b.q.Remove().(model.Event))
	}
	return out
}
