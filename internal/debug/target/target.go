package target

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
	"github.com/dshills/remotedebug/internal/debug/wire"
)

// Connection is what a Target needs from the remote side. *wire.Conn
// implements it.
type Connection interface {
	dispatch.Connection
	CreateRequest(ctx context.Context, spec wire.RequestSpec, bind func(*event.Request)) (*event.Request, error)
	DeleteRequest(ctx context.Context, req *event.Request) error
	Dispose(ctx context.Context) error
	Close() error
}

// State is the lifecycle state of a Target.
type State int

const (
	// NotStarted means Start has not been called.
	NotStarted State = iota
	// Running means the dispatcher is processing events.
	Running
	// Terminated means the debuggee died or was terminated.
	Terminated
	// Disconnected means the connection ended without the debuggee dying.
	Disconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DefaultName is the model event source used for the debuggee itself.
const DefaultName = "vm"

// Target is a debuggee reached through a Connection.
type Target struct {
	conn         Connection
	dispatcher   *dispatch.Dispatcher
	dispatchOpts []dispatch.Option
	name         string
	logger       zerolog.Logger

	mu          sync.RWMutex
	state       State
	exitCode    int
	threads     map[int64]struct{}
	breakpoints map[*event.Request]*Breakpoint

	starting atomic.Bool
	done     chan struct{}
}

// New creates a target and the dispatcher it owns. Model events produced
// while dispatching are published to sink.
func New(conn Connection, sink model.Sink, opts ...Option) *Target {
	t := &Target{
		conn:        conn,
		name:        DefaultName,
		logger:      zerolog.Nop(),
		threads:     make(map[int64]struct{}),
		breakpoints: make(map[*event.Request]*Breakpoint),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.dispatcher = dispatch.New(conn, t, sink, t.dispatchOpts...)
	return t
}

// Dispatcher returns the dispatcher owned by the target.
func (t *Target) Dispatcher() *dispatch.Dispatcher {
	return t.dispatcher
}

// Start runs the dispatcher on its own goroutine. Later calls do nothing.
func (t *Target) Start(ctx context.Context) {
	if !t.starting.CompareAndSwap(false, true) {
		return
	}

	t.mu.Lock()
	if t.state == NotStarted {
		t.state = Running
	}
	t.mu.Unlock()

	go func() {
		defer close(t.done)
		t.dispatcher.Run(ctx)

		t.mu.Lock()
		if t.state == Running {
			t.state = Disconnected
		}
		t.mu.Unlock()
		t.logger.Info().Str("state", t.State().String()).Msg("target stopped")
	}()
}

// Wait blocks until the dispatcher has stopped. It returns immediately if
// Start was never called.
func (t *Target) Wait() {
	if !t.starting.Load() {
		return
	}
	<-t.done
}

// Done returns a channel closed when the dispatcher has stopped.
func (t *Target) Done() <-chan struct{} {
	return t.done
}

// State returns the current state.
func (t *Target) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// ExitCode returns the exit code reported when the debuggee died.
func (t *Target) ExitCode() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exitCode
}

// Threads returns the live thread ids in ascending order.
func (t *Target) Threads() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int64, 0, len(t.threads))
	for id := range t.threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OnStart implements dispatch.Target.
func (t *Target) OnStart(ev *event.Event) {
	t.mu.Lock()
	if t.state == NotStarted {
		t.state = Running
	}
	if ev.Thread != 0 {
		t.threads[ev.Thread] = struct{}{}
	}
	t.mu.Unlock()

	t.logger.Info().Int64("thread", ev.Thread).Msg("debuggee started")
	t.dispatcher.Enqueue(model.New(model.Create, model.Unspecified, t.name).OnThread(ev.Thread))
}

// OnDeath implements dispatch.Target.
func (t *Target) OnDeath(ev *event.Event) {
	t.mu.Lock()
	t.state = Terminated
	t.exitCode = ev.ExitCode
	t.threads = make(map[int64]struct{})
	t.mu.Unlock()

	t.logger.Info().Int("exit_code", ev.ExitCode).Msg("debuggee died")
	t.dispatcher.Enqueue(model.New(model.Terminate, model.Unspecified, t.name).With("exitCode", ev.ExitCode))
}

// OnDisconnect implements dispatch.Target.
func (t *Target) OnDisconnect(*event.Event) {
	t.mu.Lock()
	if t.state != Terminated {
		t.state = Disconnected
	}
	t.threads = make(map[int64]struct{})
	t.mu.Unlock()

	t.logger.Info().Msg("debuggee disconnected")
	t.dispatcher.Enqueue(model.New(model.Terminate, model.Unspecified, t.name).With("disconnected", true))
}

func (t *Target) threadChanged(thread int64, alive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if alive {
		t.threads[thread] = struct{}{}
	} else {
		delete(t.threads, thread)
	}
}

// Disconnect stops dispatching and closes the connection, leaving the
// debuggee running.
func (t *Target) Disconnect(ctx context.Context) error {
	t.dispatcher.Shutdown()

	t.mu.Lock()
	if t.state == Running || t.state == NotStarted {
		t.state = Disconnected
	}
	t.mu.Unlock()

	err := t.conn.Close()
	t.closeConditions()
	t.logger.Debug().Msg("disconnected")
	return err
}

// Terminate asks the remote side to end the session, then disconnects.
func (t *Target) Terminate(ctx context.Context) error {
	err := t.conn.Dispose(ctx)
	if err != nil && !wire.IsLost(err) {
		t.logger.Warn().Err(err).Msg("dispose failed")
	}

	t.mu.Lock()
	t.state = Terminated
	t.mu.Unlock()

	t.dispatcher.Shutdown()
	if cerr := t.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	t.closeConditions()

	if wire.IsLost(err) {
		return nil
	}
	return err
}

func (t *Target) closeConditions() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, bp := range t.breakpoints {
		if bp.condition != nil {
			bp.condition.Close()
		}
	}
}

// Status is a snapshot of a target.
type Status struct {
	Name        string         `json:"name"`
	State       string         `json:"state"`
	ExitCode    int            `json:"exitCode"`
	Threads     []int64        `json:"threads"`
	Breakpoints int            `json:"breakpoints"`
	Dispatch    DispatchStatus `json:"dispatch"`
}

// DispatchStatus is the dispatcher part of a Status.
type DispatchStatus struct {
	State            string `json:"state"`
	Listeners        int    `json:"listeners"`
	Groups           uint64 `json:"groups"`
	Events           uint64 `json:"events"`
	Dropped          uint64 `json:"dropped"`
	Resumes          uint64 `json:"resumes"`
	ListenerFailures uint64 `json:"listenerFailures"`
}

// Status returns a snapshot of the target and its dispatcher.
func (t *Target) Status() Status {
	stats := t.dispatcher.Stats()

	t.mu.RLock()
	state, exitCode, bps := t.state, t.exitCode, len(t.breakpoints)
	t.mu.RUnlock()

	return Status{
		Name:        t.name,
		State:       state.String(),
		ExitCode:    exitCode,
		Threads:     t.Threads(),
		Breakpoints: bps,
		Dispatch: DispatchStatus{
			State:            stats.State.String(),
			Listeners:        stats.Listeners,
			Groups:           stats.Groups,
			Events:           stats.Events,
			Dropped:          stats.Dropped,
			Resumes:          stats.Resumes,
			ListenerFailures: stats.ListenerFailures,
		},
	}
}
