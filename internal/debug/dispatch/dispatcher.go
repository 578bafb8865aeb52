package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// State is the lifecycle state of a Dispatcher.
type State int

const (
	// Running means the loop is receiving and dispatching groups.
	Running State = iota
	// ShuttingDown means shutdown was requested and the loop will exit at
	// its next check.
	ShuttingDown
	// Stopped means Run has returned. It is terminal.
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Dispatcher reads event groups from a connection and dispatches them.
type Dispatcher struct {
	conn   Connection
	target Target
	sink   model.Sink

	registry *Registry
	pending  *batch

	shutdown atomic.Bool
	started  atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	isolate bool
	logger  zerolog.Logger

	groups    atomic.Uint64
	events    atomic.Uint64
	resumes   atomic.Uint64
	failures  atomic.Uint64
	dropped   atomic.Uint64
	published atomic.Uint64
}

// New creates a dispatcher. The target is held for callbacks only; the
// caller owns it and decides when the dispatcher is created and shut down.
func New(conn Connection, target Target, sink model.Sink, opts ...Option) *Dispatcher {
	if sink == nil {
		sink = model.Discard
	}
	d := &Dispatcher{
		conn:     conn,
		target:   target,
		sink:     sink,
		registry: NewRegistry(),
		pending:  newBatch(),
		done:     make(chan struct{}),
		isolate:  true,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddListener registers l for events produced by req, replacing any
// listener already registered for req. Safe to call from any goroutine.
func (d *Dispatcher) AddListener(l Listener, req *event.Request) {
	d.registry.Register(req, l)
}

// RemoveListener removes whatever listener is registered for req.
// The listener argument is not checked against the stored one.
func (d *Dispatcher) RemoveListener(l Listener, req *event.Request) {
	d.registry.Unregister(req, l)
}

// Listener returns the listener registered for req.
func (d *Dispatcher) Listener(req *event.Request) (Listener, bool) {
	return d.registry.Lookup(req)
}

// ListenerCount returns the number of registered requests.
func (d *Dispatcher) ListenerCount() int {
	return d.registry.Len()
}

// Enqueue appends a model event to the batch for the group being processed.
// It must only be called from the loop goroutine, i.e. from a listener or
// lifecycle callback.
func (d *Dispatcher) Enqueue(e model.Event) {
	d.pending.add(e)
}

// Shutdown asks the loop to stop. It does not interrupt a receive in
// flight. Safe to call from any goroutine, any number of times.
func (d *Dispatcher) Shutdown() {
	if d.shutdown.CompareAndSwap(false, true) {
		d.logger.Debug().Msg("shutdown requested")
	}
}

// IsShutdown reports whether shutdown has been requested.
func (d *Dispatcher) IsShutdown() bool {
	return d.shutdown.Load()
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	switch {
	case d.stopped.Load():
		return Stopped
	case d.shutdown.Load():
		return ShuttingDown
	default:
		return Running
	}
}

// Done returns a channel closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Run executes the loop on the calling goroutine until the connection is
// lost, ctx is done, or shutdown is observed. A dispatcher runs at most
// once; later calls return immediately.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	defer d.stop()

	for !d.IsShutdown() {
		group, err := d.conn.Receive(ctx)
		if err != nil {
			d.logReceiveError(err)
			return
		}
		if group == nil {
			d.logger.Debug().Msg("connection returned no group")
			return
		}
		if !d.IsShutdown() {
			d.dispatch(ctx, group)
		}
	}
}

func (d *Dispatcher) stop() {
	d.shutdown.Store(true)
	d.stopped.Store(true)
	d.doneOnce.Do(func() { close(d.done) })
	d.logger.Debug().Msg("dispatcher stopped")
}

func (d *Dispatcher) logReceiveError(err error) {
	switch {
	case errors.Is(err, event.ErrDisconnected), errors.Is(err, event.ErrClosed):
		d.logger.Debug().Err(err).Msg("connection lost")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.logger.Debug().Err(err).Msg("receive interrupted")
	default:
		d.logger.Warn().Err(err).Msg("receive failed")
	}
}

// dispatch processes one group: routes each event, flushes the batch once,
// then resumes the group if the listeners agreed.
func (d *Dispatcher) dispatch(ctx context.Context, group *event.Group) {
	d.groups.Add(1)
	groupsTotal.Inc()

	participated := false
	resume := true

	for i := range group.Events {
		if d.IsShutdown() {
			skipped := len(group.Events) - i
			d.dropped.Add(uint64(skipped))
			droppedTotal.Add(float64(skipped))
			d.logger.Debug().Int64("group", group.ID).Int("skipped", skipped).Msg("shutdown interrupted group")
			break
		}

		ev := &group.Events[i]
		r, l := classify(ev, d.registry)
		d.events.Add(1)
		eventsTotal.WithLabelValues(r.String()).Inc()

		switch r {
		case routeListener:
			vote, ok := d.handle(l, ev)
			if !ok {
				resume = false
				continue
			}
			participated = true
			resume = vote && resume
		case routeStart:
			d.call(ev, d.target.OnStart)
		case routeDeath:
			d.call(ev, d.target.OnDeath)
			d.Shutdown()
		case routeDisconnect:
			d.call(ev, d.target.OnDisconnect)
			d.Shutdown()
		default:
			d.logger.Trace().Str("kind", ev.Kind.String()).Msg("ignoring unrecognized event")
		}
	}

	d.flush()

	if participated && resume {
		if err := d.conn.Resume(ctx, group); err != nil {
			d.logger.Warn().Err(err).Int64("group", group.ID).Msg("resume failed")
			return
		}
		d.resumes.Add(1)
		resumesTotal.Inc()
	}
}

// handle invokes a listener. ok is false if the listener panicked and the
// panic was recovered.
func (d *Dispatcher) handle(l Listener, ev *event.Event) (vote, ok bool) {
	if !d.isolate {
		return l.HandleEvent(ev, d.target), true
	}

	var pc panics.Catcher
	pc.Try(func() { vote = l.HandleEvent(ev, d.target) })
	if r := pc.Recovered(); r != nil {
		d.recordFailure(ev, r)
		return false, false
	}
	return vote, true
}

// call invokes a lifecycle callback.
func (d *Dispatcher) call(ev *event.Event, fn func(*event.Event)) {
	if !d.isolate {
		fn(ev)
		return
	}

	var pc panics.Catcher
	pc.Try(func() { fn(ev) })
	if r := pc.Recovered(); r != nil {
		d.recordFailure(ev, r)
	}
}

func (d *Dispatcher) recordFailure(ev *event.Event, r *panics.Recovered) {
	d.failures.Add(1)
	listenerFailuresTotal.Inc()
	d.logger.Error().
		Str("kind", ev.Kind.String()).
		Str("request", ev.Request.String()).
		Interface("panic", r.Value).
		Bytes("stack", r.Stack).
		Msg("event callback panicked")
}

// flush publishes the pending batch, even when empty, and clears it.
func (d *Dispatcher) flush() {
	events := d.pending.drain()
	batchSize.Observe(float64(len(events)))
	d.published.Add(1)
	d.sink.Publish(events)
}

// Stats holds dispatcher counters.
type Stats struct {
	State            State
	Listeners        int
	Groups           uint64
	Events           uint64
	Dropped          uint64
	Resumes          uint64
	ListenerFailures uint64
	Batches          uint64
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		State:            d.State(),
		Listeners:        d.registry.Len(),
		Groups:           d.groups.Load(),
		Events:           d.events.Load(),
		Dropped:          d.dropped.Load(),
		Resumes:          d.resumes.Load(),
		ListenerFailures: d.failures.Load(),
		Batches:          d.published.Load(),
	}
}
