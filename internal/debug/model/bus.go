package model

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// Filter selects which events a subscription receives. A nil filter
// receives every event.
type Filter func(Event) bool

// KindFilter returns a filter matching any of the given kinds.
func KindFilter(kinds ...Kind) Filter {
	return func(e Event) bool {
		for _, k := range kinds {
			if e.Kind == k {
				return true
			}
		}
		return false
	}
}

// Handler receives the filtered part of a batch. It is not called when
// filtering leaves nothing, unless the subscription asked for empty batches.
type Handler func(batch []Event)

// Subscription is a registered interest in published batches.
type Subscription struct {
	id        uint64
	filter    Filter
	handler   Handler
	wantEmpty bool
	bus       *Bus
}

// ID returns the subscription identifier.
func (s *Subscription) ID() uint64 { return s.id }

// Unsubscribe removes the subscription from its bus.
func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Unsubscribe(s)
	}
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*Subscription)

// WithFilter restricts the subscription to matching events.
func WithFilter(f Filter) SubscriptionOption {
	return func(s *Subscription) {
		s.filter = f
	}
}

// WithEmptyBatches delivers batches even when they carry no events.
func WithEmptyBatches() SubscriptionOption {
	return func(s *Subscription) {
		s.wantEmpty = true
	}
}

// Bus is a Sink that fans published batches out to subscribers.
// Delivery is synchronous, in subscription order, on the publishing
// goroutine. A panicking handler is recovered and logged; the remaining
// handlers still run.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID atomic.Uint64
	logger zerolog.Logger

	published atomic.Uint64
	panicked  atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "model-bus").Logger()}
}

// Subscribe registers a handler for published batches.
func (b *Bus) Subscribe(handler Handler, opts ...SubscriptionOption) *Subscription {
	sub := &Subscription{
		id:      b.nextID.Add(1),
		handler: handler,
		bus:     b,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers a batch to every subscription.
func (b *Bus) Publish(batch []Event) {
	b.published.Add(1)

	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		part := batch
		if sub.filter != nil {
			part = make([]Event, 0, len(batch))
			for _, e := range batch {
				if sub.filter(e) {
					part = append(part, e)
				}
			}
		}
		if len(part) == 0 && !sub.wantEmpty {
			continue
		}
		b.deliver(sub, part)
	}
}

func (b *Bus) deliver(sub *Subscription, part []Event) {
	var pc panics.Catcher
	pc.Try(func() { sub.handler(part) })
	if r := pc.Recovered(); r != nil {
		b.panicked.Add(1)
		b.logger.Error().
			Uint64("subscription", sub.id).
			Interface("panic", r.Value).
			Msg("model event handler panicked")
	}
}

// BusStats holds delivery counters.
type BusStats struct {
	Published     uint64
	Panicked      uint64
	Subscriptions int
}

// Stats returns delivery counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Published:     b.published.Load(),
		Panicked:      b.panicked.Load(),
		Subscriptions: b.Len(),
	}
}
