package listener

import (
	"sync/atomic"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// Breakpoint suspends the debuggee when a location is hit.
type Breakpoint struct {
	queue    Enqueuer
	location event.Location
	hitCount int64

	enabled atomic.Bool
	hits    atomic.Int64
}

// BreakpointOption configures a Breakpoint.
type BreakpointOption func(*Breakpoint)

// WithHitCount makes the breakpoint suspend only on the n-th hit, after
// which it disables itself. Zero suspends on every hit.
func WithHitCount(n int) BreakpointOption {
	return func(b *Breakpoint) {
		if n >= 0 {
			b.hitCount = int64(n)
		}
	}
}

// Disabled creates the breakpoint disabled.
func Disabled() BreakpointOption {
	return func(b *Breakpoint) {
		b.enabled.Store(false)
	}
}

// NewBreakpoint creates an enabled breakpoint for loc.
func NewBreakpoint(q Enqueuer, loc event.Location, opts ...BreakpointOption) *Breakpoint {
	b := &Breakpoint{queue: q, location: loc}
	b.enabled.Store(true)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Location returns the location the breakpoint was set at.
func (b *Breakpoint) Location() event.Location { return b.location }

// Enabled reports whether the breakpoint suspends on hits.
func (b *Breakpoint) Enabled() bool { return b.enabled.Load() }

// SetEnabled enables or disables the breakpoint.
func (b *Breakpoint) SetEnabled(enabled bool) { b.enabled.Store(enabled) }

// Hits returns how many times the breakpoint was hit while enabled.
func (b *Breakpoint) Hits() int64 { return b.hits.Load() }

// HandleEvent implements dispatch.Listener.
func (b *Breakpoint) HandleEvent(ev *event.Event, _ dispatch.Target) bool {
	if !b.Enabled() {
		return true
	}

	n := b.hits.Add(1)
	if b.hitCount > 0 {
		if n < b.hitCount {
			return true
		}
		b.SetEnabled(false)
	}

	loc := ev.Location
	if loc.Class == "" {
		loc = b.location
	}
	b.queue.Enqueue(model.New(model.Suspend, model.BreakpointHit, model.ThreadSource(ev.Thread)).
		OnThread(ev.Thread).
		With("location", loc.String()).
		With("hits", n))
	return false
}
