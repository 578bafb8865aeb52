package wire_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/wire"
	"github.com/dshills/remotedebug/internal/debug/wire/wiretest"
)

func newConn(t *testing.T) (*wire.Conn, *wiretest.Peer) {
	t.Helper()
	peer, transport := wiretest.New()
	conn := wire.NewConn(transport)
	t.Cleanup(func() {
		conn.Close()
		peer.Close()
	})
	return conn, peer
}

func receive(t *testing.T, conn *wire.Conn) *event.Group {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	return g
}

func TestConnCreateRequestResolvesEvents(t *testing.T) {
	conn, peer := newConn(t)
	ctx := context.Background()

	req, err := conn.CreateRequest(ctx, wire.RequestSpec{
		Kind:          event.Breakpoint,
		SuspendPolicy: event.SuspendThread,
		Location:      &event.Location{Class: "Main", Line: 12},
	}, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.WireID() == 0 || req.Kind() != event.Breakpoint {
		t.Fatalf("unexpected request %v", req)
	}
	if conn.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", conn.RequestCount())
	}

	if _, err := peer.SendGroup("thread", wire.WireEvent{
		Kind:      "breakpoint",
		RequestID: req.WireID(),
		Thread:    7,
		Location:  &event.Location{Class: "Main", Method: "run", Line: 12},
	}); err != nil {
		t.Fatalf("send group: %v", err)
	}

	g := receive(t, conn)
	if g.SuspendPolicy != event.SuspendThread || g.Len() != 1 {
		t.Fatalf("unexpected group %+v", g)
	}
	ev := g.Events[0]
	if ev.Request != req {
		t.Errorf("event request = %v, want %v", ev.Request, req)
	}
	if ev.Thread != 7 || ev.Location.String() != "Main.run:12" {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(ev.Raw) == 0 {
		t.Error("raw event JSON missing")
	}
}

func TestConnCreateRequestBindsBeforeFirstEvent(t *testing.T) {
	conn, peer := newConn(t)
	peer.OnCreate(func(id int) {
		peer.SendGroup("all", wire.WireEvent{Kind: "breakpoint", RequestID: id, Thread: 2})
	})

	bound := make(chan *event.Request, 1)
	req, err := conn.CreateRequest(context.Background(), wire.RequestSpec{
		Kind:          event.Breakpoint,
		SuspendPolicy: event.SuspendAll,
	}, func(r *event.Request) { bound <- r })
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	g := receive(t, conn)
	select {
	case r := <-bound:
		if r != req {
			t.Errorf("bound %v, want %v", r, req)
		}
	default:
		t.Fatal("bind did not run before the first event was queued")
	}
	if ev := g.Events[0]; ev.Request != req {
		t.Errorf("first event request = %v, want %v", ev.Request, req)
	}
}

func TestConnCreateRequestFailureSkipsBind(t *testing.T) {
	conn, peer := newConn(t)
	peer.Fail(wire.CommandCreateRequest, wiretest.Failure{Message: "absent", Code: 21})

	called := false
	_, err := conn.CreateRequest(context.Background(), wire.RequestSpec{Kind: event.Breakpoint}, func(*event.Request) {
		called = true
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("bind ran for a failed request")
	}
	if conn.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", conn.RequestCount())
	}
}

func TestConnDeleteRequest(t *testing.T) {
	conn, peer := newConn(t)
	ctx := context.Background()

	req, err := conn.CreateRequest(ctx, wire.RequestSpec{Kind: event.Step, SuspendPolicy: event.SuspendAll}, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := conn.DeleteRequest(ctx, req); err != nil {
		t.Fatalf("delete request: %v", err)
	}

	deleted := peer.Deleted()
	if len(deleted) != 1 || deleted[0] != req.WireID() {
		t.Errorf("Deleted = %v, want [%d]", deleted, req.WireID())
	}
	if conn.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", conn.RequestCount())
	}

	// A late event for the deleted request carries no handle.
	if _, err := peer.SendGroup("all", wire.WireEvent{Kind: "step", RequestID: req.WireID()}); err != nil {
		t.Fatalf("send group: %v", err)
	}
	if ev := receive(t, conn).Events[0]; ev.Request != nil {
		t.Errorf("expected nil request, got %v", ev.Request)
	}
}

func TestConnResume(t *testing.T) {
	conn, peer := newConn(t)
	ctx := context.Background()

	id, err := peer.SendGroup("all", wire.WireEvent{Kind: "threadStart", Thread: 1})
	if err != nil {
		t.Fatalf("send group: %v", err)
	}
	g := receive(t, conn)
	if g.ID != id {
		t.Fatalf("group id = %d, want %d", g.ID, id)
	}

	if err := conn.Resume(ctx, g); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := peer.Resumed(); len(got) != 1 || got[0] != id {
		t.Errorf("Resumed = %v, want [%d]", got, id)
	}
}

func TestConnResumeSkipsUnsuspendedGroup(t *testing.T) {
	conn, peer := newConn(t)

	g := &event.Group{ID: 3, SuspendPolicy: event.SuspendNone}
	if err := conn.Resume(context.Background(), g); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if cmds := peer.Commands(); len(cmds) != 0 {
		t.Errorf("expected no commands, got %v", cmds)
	}
}

func TestConnDrainsGroupsBeforeDisconnect(t *testing.T) {
	conn, peer := newConn(t)

	first, _ := peer.SendGroup("all", wire.WireEvent{Kind: "threadStart", Thread: 1})
	second, _ := peer.SendGroup("all", wire.WireEvent{Kind: "threadStart", Thread: 2})
	peer.Close()

	if g := receive(t, conn); g.ID != first {
		t.Errorf("first group id = %d, want %d", g.ID, first)
	}
	if g := receive(t, conn); g.ID != second {
		t.Errorf("second group id = %d, want %d", g.ID, second)
	}

	last := receive(t, conn)
	if last.SuspendPolicy != event.SuspendNone || last.Len() != 1 || last.Events[0].Kind != event.VMDisconnect {
		t.Fatalf("expected synthetic disconnect group, got %+v", last)
	}

	_, err := conn.Receive(context.Background())
	if !errors.Is(err, event.ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
	if conn.Err() == nil {
		t.Error("Err should report the transport failure")
	}
}

func TestConnNoSyntheticGroupAfterDeath(t *testing.T) {
	conn, peer := newConn(t)

	if _, err := peer.SendGroup("none", wire.WireEvent{Kind: "vmDeath", ExitCode: 3}); err != nil {
		t.Fatalf("send group: %v", err)
	}
	peer.Close()

	g := receive(t, conn)
	if g.Events[0].Kind != event.VMDeath || g.Events[0].ExitCode != 3 {
		t.Fatalf("unexpected group %+v", g)
	}

	if _, err := conn.Receive(context.Background()); !errors.Is(err, event.ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}

func TestConnRequestFailure(t *testing.T) {
	conn, peer := newConn(t)
	peer.Fail(wire.CommandCreateRequest, wiretest.Failure{Message: "absent information", Code: 101})

	_, err := conn.CreateRequest(context.Background(), wire.RequestSpec{Kind: event.Breakpoint}, nil)

	var internal *wire.InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("expected InternalError, got %v", err)
	}
	if internal.Code != 101 || internal.Command != wire.CommandCreateRequest {
		t.Errorf("unexpected error %+v", internal)
	}
	if conn.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", conn.RequestCount())
	}
}

func TestConnPendingRequestFailsOnLoss(t *testing.T) {
	conn, peer := newConn(t)
	peer.Silence(wire.CommandResume)

	errc := make(chan error, 1)
	go func() {
		errc <- conn.Resume(context.Background(), &event.Group{ID: 1, SuspendPolicy: event.SuspendAll})
	}()

	if !peer.WaitFor(func(p *wiretest.Peer) bool { return len(p.Commands()) == 1 }, 2*time.Second) {
		t.Fatal("resume never reached the peer")
	}
	peer.Close()

	select {
	case err := <-errc:
		if !wire.IsLost(err) {
			t.Errorf("expected lost connection error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resume did not return")
	}
}

func TestConnRequestContextCancel(t *testing.T) {
	conn, peer := newConn(t)
	peer.Silence(wire.CommandCreateRequest)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.CreateRequest(ctx, wire.RequestSpec{Kind: event.Breakpoint}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestConnClose(t *testing.T) {
	conn, _ := newConn(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := conn.Dispose(context.Background()); !errors.Is(err, event.ErrClosed) {
		t.Errorf("Dispose after Close: expected ErrClosed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, err := conn.Receive(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, event.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		break
	}
}

func TestConnIgnoresUnexpectedMessages(t *testing.T) {
	conn, peer := newConn(t)

	if err := peer.SendRaw(`{"seq":1,"type":"banner"}`); err != nil {
		t.Fatalf("send raw: %v", err)
	}
	if err := peer.SendRaw(`{"seq":2,"type":"eventGroup","events":"oops"}`); err != nil {
		t.Fatalf("send raw: %v", err)
	}
	if err := peer.SendRaw(`{"seq":3,"type":"response","request_seq":99,"success":true}`); err != nil {
		t.Fatalf("send raw: %v", err)
	}
	id, err := peer.SendGroup("all", wire.WireEvent{Kind: "classPrepare"})
	if err != nil {
		t.Fatalf("send group: %v", err)
	}

	if g := receive(t, conn); g.ID != id || g.Events[0].Kind != event.ClassPrepare {
		t.Errorf("unexpected group %+v", g)
	}
}

func TestConnUnknownEventKind(t *testing.T) {
	conn, peer := newConn(t)

	if _, err := peer.SendGroup("", wire.WireEvent{Kind: "monitorContendedEnter"}); err != nil {
		t.Fatalf("send group: %v", err)
	}

	g := receive(t, conn)
	if g.SuspendPolicy != event.SuspendAll {
		t.Errorf("default policy = %v, want all", g.SuspendPolicy)
	}
	if g.Events[0].Kind != event.Unknown {
		t.Errorf("kind = %v, want unknown", g.Events[0].Kind)
	}
}
