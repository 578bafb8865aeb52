package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
)

// DefaultConditionTimeout bounds a single condition evaluation.
const DefaultConditionTimeout = 100 * time.Millisecond

// ErrConditionClosed is returned when evaluating a closed condition.
var ErrConditionClosed = errors.New("condition closed")

// Condition gates another listener behind a Lua boolean expression.
//
// The expression sees these globals:
//
//	class, method  string   location of the event
//	line, thread   number
//	field, value   string   watchpoint field and value
//	exception      string   exception class, or nil
//	hits           number   evaluations so far, including this one
//
// A false result lets the group resume without consulting the wrapped
// listener. An evaluation error keeps the debuggee suspended and reports
// the error as a Change model event.
type Condition struct {
	mu      sync.Mutex
	L       *lua.LState
	fn      *lua.LFunction
	closed  bool
	hits    int64
	timeout time.Duration

	expr  string
	inner dispatch.Listener
	queue Enqueuer
}

// NewCondition compiles expr and wraps inner.
func NewCondition(q Enqueuer, expr string, inner dispatch.Listener) (*Condition, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	fn, err := L.LoadString("return (" + expr + ")")
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("compile condition %q: %w", expr, err)
	}

	return &Condition{
		L:       L,
		fn:      fn,
		timeout: DefaultConditionTimeout,
		expr:    expr,
		inner:   inner,
		queue:   q,
	}, nil
}

// Expression returns the condition source.
func (c *Condition) Expression() string { return c.expr }

// Inner returns the wrapped listener.
func (c *Condition) Inner() dispatch.Listener { return c.inner }

// HandleEvent implements dispatch.Listener.
func (c *Condition) HandleEvent(ev *event.Event, target dispatch.Target) bool {
	ok, err := c.Eval(ev)
	if err != nil {
		c.queue.Enqueue(model.New(model.Change, model.Unspecified, model.ThreadSource(ev.Thread)).
			OnThread(ev.Thread).
			With("condition", c.expr).
			With("error", err.Error()))
		return false
	}
	if !ok {
		return true
	}
	return c.inner.HandleEvent(ev, target)
}

// Eval evaluates the expression against ev.
func (c *Condition) Eval(ev *event.Event) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrConditionClosed
	}
	c.hits++

	L := c.L
	L.SetGlobal("class", lua.LString(ev.Location.Class))
	L.SetGlobal("method", lua.LString(ev.Location.Method))
	L.SetGlobal("line", lua.LNumber(ev.Location.Line))
	L.SetGlobal("thread", lua.LNumber(ev.Thread))
	L.SetGlobal("field", lua.LString(ev.Field))
	L.SetGlobal("value", lua.LString(ev.Value))
	L.SetGlobal("hits", lua.LNumber(c.hits))
	if ev.Exception != nil {
		L.SetGlobal("exception", lua.LString(ev.Exception.Class))
	} else {
		L.SetGlobal("exception", lua.LNil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	L.Push(c.fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", c.expr, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state.
func (c *Condition) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.L.Close()
	}
}
