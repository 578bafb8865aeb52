package model

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []string
	bus.Subscribe(func(batch []Event) { order = append(order, "first") })
	bus.Subscribe(func(batch []Event) { order = append(order, "second") })

	bus.Publish([]Event{New(Create, Unspecified, "vm")})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("delivery order = %v", order)
	}
}

func TestBusFilter(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []Event
	bus.Subscribe(func(batch []Event) { got = append(got, batch...) },
		WithFilter(KindFilter(Suspend)))

	bus.Publish([]Event{
		New(Create, Unspecified, "vm"),
		New(Suspend, BreakpointHit, "thread-1"),
		New(Terminate, Unspecified, "vm"),
	})

	if len(got) != 1 || got[0].Kind != Suspend {
		t.Fatalf("filtered events = %v", got)
	}
}

func TestBusEmptyBatches(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	plain, empty := 0, 0
	bus.Subscribe(func([]Event) { plain++ })
	bus.Subscribe(func([]Event) { empty++ }, WithEmptyBatches())

	bus.Publish(nil)

	if plain != 0 {
		t.Errorf("plain subscriber called %d times for empty batch", plain)
	}
	if empty != 1 {
		t.Errorf("empty-batch subscriber called %d times, want 1", empty)
	}
	if got := bus.Stats().Published; got != 1 {
		t.Errorf("Published = %d, want 1", got)
	}

	// A batch the filter empties counts as empty for that subscriber.
	filtered := 0
	bus.Subscribe(func([]Event) { filtered++ }, WithFilter(KindFilter(Terminate)))
	bus.Publish([]Event{New(Create, Unspecified, "vm")})
	if filtered != 0 {
		t.Errorf("filtered subscriber called %d times, want 0", filtered)
	}
	if plain != 1 || empty != 2 {
		t.Errorf("plain=%d empty=%d, want 1 and 2", plain, empty)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	sub := bus.Subscribe(func([]Event) { calls++ })
	sub.Unsubscribe()
	sub.Unsubscribe()

	bus.Publish([]Event{New(Change, Unspecified, "vm")})

	if calls != 0 {
		t.Errorf("unsubscribed handler called %d times", calls)
	}
	if bus.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bus.Len())
	}
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(zerolog.New(&buf))

	after := false
	bus.Subscribe(func([]Event) { panic("boom") })
	bus.Subscribe(func([]Event) { after = true })

	bus.Publish([]Event{New(Create, Unspecified, "vm")})

	if !after {
		t.Error("handler after a panicking one was not called")
	}
	stats := bus.Stats()
	if stats.Panicked != 1 || stats.Published != 1 || stats.Subscriptions != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(buf.String(), "panicked") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder

	if r.Last() != nil {
		t.Error("Last() on empty recorder should be nil")
	}

	batch := []Event{New(Suspend, StepEnd, "thread-1")}
	r.Publish(batch)
	batch[0].Source = "mutated"
	r.Publish(nil)

	if len(r.Batches()) != 2 {
		t.Fatalf("batches = %d, want 2", len(r.Batches()))
	}
	if got := r.Events(); len(got) != 1 || got[0].Source != "thread-1" {
		t.Errorf("events = %v", got)
	}
	if len(r.Last()) != 0 {
		t.Errorf("Last() = %v, want empty", r.Last())
	}

	r.Reset()
	if len(r.Batches()) != 0 {
		t.Error("Reset did not clear batches")
	}
}

func TestTee(t *testing.T) {
	var a, b Recorder
	Tee(&a, &b, Discard).Publish([]Event{New(Resume, ClientRequest, "vm")})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("tee did not reach all sinks: %d %d", len(a.Events()), len(b.Events()))
	}
}

func TestEventWith(t *testing.T) {
	base := New(Suspend, BreakpointHit, "thread-1")
	e := base.With("line", 12).OnThread(1)

	if base.Data != nil {
		t.Error("With mutated the original event")
	}
	if e.Data["line"] != 12 || e.Thread != 1 {
		t.Errorf("event = %+v", e)
	}
	if e.String() != "suspend/breakpoint thread-1" {
		t.Errorf("String() = %q", e.String())
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	sink.Publish([]Event{New(Suspend, BreakpointHit, "thread-3").OnThread(3).With("line", 7)})

	out := buf.String()
	for _, want := range []string{`"kind":"suspend"`, `"detail":"breakpoint"`, `"thread":3`, `"line":7`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}
