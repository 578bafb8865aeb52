package target

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/listener"
	"github.com/dshills/remotedebug/internal/debug/wire"
)

// stepCleanupTimeout bounds the deleteRequest sent after a step completes.
const stepCleanupTimeout = 5 * time.Second

// BreakpointOptions configure SetBreakpoint.
type BreakpointOptions struct {
	// Condition is a Lua expression; the breakpoint suspends only when it
	// is true.
	Condition string

	// HitCount suspends only on the n-th hit. Zero suspends on every hit.
	HitCount int

	// SuspendPolicy defaults to SuspendAll.
	SuspendPolicy event.SuspendPolicy

	// Disabled creates the breakpoint disabled.
	Disabled bool
}

// Breakpoint is a breakpoint installed in a target.
type Breakpoint struct {
	request   *event.Request
	listener  *listener.Breakpoint
	condition *listener.Condition
}

// Request returns the remote request backing the breakpoint.
func (b *Breakpoint) Request() *event.Request { return b.request }

// Location returns where the breakpoint was set.
func (b *Breakpoint) Location() event.Location { return b.listener.Location() }

// Hits returns how many times the breakpoint was hit while enabled.
func (b *Breakpoint) Hits() int64 { return b.listener.Hits() }

// Enabled reports whether the breakpoint suspends on hits.
func (b *Breakpoint) Enabled() bool { return b.listener.Enabled() }

// SetEnabled enables or disables the breakpoint without touching the
// remote request.
func (b *Breakpoint) SetEnabled(enabled bool) { b.listener.SetEnabled(enabled) }

// Condition returns the condition expression, if any.
func (b *Breakpoint) Condition() string {
	if b.condition == nil {
		return ""
	}
	return b.condition.Expression()
}

// SetBreakpoint installs a breakpoint at loc.
func (t *Target) SetBreakpoint(ctx context.Context, loc event.Location, opts BreakpointOptions) (*Breakpoint, error) {
	var bpOpts []listener.BreakpointOption
	if opts.HitCount > 0 {
		bpOpts = append(bpOpts, listener.WithHitCount(opts.HitCount))
	}
	if opts.Disabled {
		bpOpts = append(bpOpts, listener.Disabled())
	}

	bp := &Breakpoint{listener: listener.NewBreakpoint(t.dispatcher, loc, bpOpts...)}
	var l dispatch.Listener = bp.listener
	if opts.Condition != "" {
		cond, err := listener.NewCondition(t.dispatcher, opts.Condition, bp.listener)
		if err != nil {
			return nil, err
		}
		bp.condition = cond
		l = cond
	}

	policy := opts.SuspendPolicy
	if policy == event.SuspendNone {
		policy = event.SuspendAll
	}
	req, err := t.register(ctx, wire.RequestSpec{
		Kind:          event.Breakpoint,
		SuspendPolicy: policy,
		Location:      &loc,
	}, l)
	if err != nil {
		if bp.condition != nil {
			bp.condition.Close()
		}
		return nil, err
	}
	bp.request = req

	t.mu.Lock()
	t.breakpoints[req] = bp
	t.mu.Unlock()
	return bp, nil
}

// ClearBreakpoint removes bp from the dispatcher and the remote side.
func (t *Target) ClearBreakpoint(ctx context.Context, bp *Breakpoint) error {
	t.mu.Lock()
	_, ok := t.breakpoints[bp.request]
	delete(t.breakpoints, bp.request)
	t.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}

	err := t.unregister(ctx, bp.request)
	if bp.condition != nil {
		bp.condition.Close()
	}
	return err
}

// Breakpoints returns the installed breakpoints.
func (t *Target) Breakpoints() []*Breakpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Breakpoint, 0, len(t.breakpoints))
	for _, bp := range t.breakpoints {
		out = append(out, bp)
	}
	return out
}

// WatchThreads tracks thread start and death. It does not suspend.
func (t *Target) WatchThreads(ctx context.Context) error {
	l := listener.NewThread(t.dispatcher, t.threadChanged)
	for _, kind := range []event.Kind{event.ThreadStart, event.ThreadDeath} {
		if _, err := t.register(ctx, wire.RequestSpec{Kind: kind, SuspendPolicy: event.SuspendNone}, l); err != nil {
			return err
		}
	}
	return nil
}

// CatchExceptions suspends on exceptions whose class matches pattern.
func (t *Target) CatchExceptions(ctx context.Context, pattern string, caught, uncaught bool) (*event.Request, error) {
	l, err := listener.NewException(t.dispatcher, pattern, caught, uncaught)
	if err != nil {
		return nil, fmt.Errorf("exception pattern %q: %w", pattern, err)
	}
	return t.register(ctx, wire.RequestSpec{
		Kind:          event.Exception,
		SuspendPolicy: event.SuspendAll,
		ClassFilter:   pattern,
		Caught:        caught,
		Uncaught:      uncaught,
	}, l)
}

// WatchField suspends when field is read (access) or written
// (modification).
func (t *Target) WatchField(ctx context.Context, field string, access, modification bool) ([]*event.Request, error) {
	l := listener.NewWatchpoint(t.dispatcher, field, access, modification)

	var kinds []event.Kind
	if access {
		kinds = append(kinds, event.AccessWatchpoint)
	}
	if modification {
		kinds = append(kinds, event.ModificationWatchpoint)
	}

	reqs := make([]*event.Request, 0, len(kinds))
	for _, kind := range kinds {
		req, err := t.register(ctx, wire.RequestSpec{Kind: kind, SuspendPolicy: event.SuspendAll, Field: field}, l)
		if err != nil {
			return reqs, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// TraceMethods suspends on entry to, or exit from, methods matching
// pattern.
func (t *Target) TraceMethods(ctx context.Context, pattern string, exit bool) (*event.Request, error) {
	l, err := listener.NewMethod(t.dispatcher, pattern)
	if err != nil {
		return nil, fmt.Errorf("method pattern %q: %w", pattern, err)
	}
	kind := event.MethodEntry
	if exit {
		kind = event.MethodExit
	}
	return t.register(ctx, wire.RequestSpec{Kind: kind, SuspendPolicy: event.SuspendThread}, l)
}

// Step asks thread to step once. depth is "into", "over" or "out". The
// request is removed once the step completes.
func (t *Target) Step(ctx context.Context, thread int64, depth string) (*event.Request, error) {
	spec := wire.RequestSpec{
		Kind:          event.Step,
		SuspendPolicy: event.SuspendThread,
		Thread:        thread,
		StepDepth:     depth,
	}
	req, err := t.conn.CreateRequest(ctx, spec, func(req *event.Request) {
		var l *listener.Step
		l = listener.NewStep(t.dispatcher, func(*event.Event) {
			t.dispatcher.RemoveListener(l, req)
			go t.deleteAfterStep(req)
		})
		t.dispatcher.AddListener(l, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", spec.Kind, err)
	}
	return req, nil
}

func (t *Target) deleteAfterStep(req *event.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), stepCleanupTimeout)
	defer cancel()

	if err := t.conn.DeleteRequest(ctx, req); err != nil && !wire.IsLost(err) {
		t.logger.Debug().Err(err).Str("request", req.String()).Msg("step cleanup failed")
	}
}

// OnClassPrepare calls fn with the name of every prepared class matching
// filter. It is how breakpoints in classes not yet loaded get installed.
func (t *Target) OnClassPrepare(ctx context.Context, filter string, fn func(class string)) (*event.Request, error) {
	return t.register(ctx, wire.RequestSpec{
		Kind:          event.ClassPrepare,
		SuspendPolicy: event.SuspendNone,
		ClassFilter:   filter,
	}, listener.NewClassPrepare(fn))
}

// Unregister removes the listener for req and deletes the remote request.
func (t *Target) Unregister(ctx context.Context, req *event.Request) error {
	t.mu.Lock()
	bp := t.breakpoints[req]
	delete(t.breakpoints, req)
	t.mu.Unlock()

	err := t.unregister(ctx, req)
	if bp != nil && bp.condition != nil {
		bp.condition.Close()
	}
	return err
}

// register creates the remote request with l already routed for it, so a
// hit reported right after the agent answers is not lost.
func (t *Target) register(ctx context.Context, spec wire.RequestSpec, l dispatch.Listener) (*event.Request, error) {
	req, err := t.conn.CreateRequest(ctx, spec, func(req *event.Request) {
		t.dispatcher.AddListener(l, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", spec.Kind, err)
	}
	t.logger.Debug().Str("request", req.String()).Msg("listener registered")
	return req, nil
}

func (t *Target) unregister(ctx context.Context, req *event.Request) error {
	t.dispatcher.RemoveListener(nil, req)
	if err := t.conn.DeleteRequest(ctx, req); err != nil {
		return fmt.Errorf("delete %s: %w", req, err)
	}
	t.logger.Debug().Str("request", req.String()).Msg("listener removed")
	return nil
}
