// Package dispatch routes event groups from a remote debug connection to the
// listeners that registered interest in them, aggregates their resume votes,
// and converts lifecycle occurrences into target callbacks.
//
// # Loop
//
// A Dispatcher runs one read/dispatch/fire cycle on a single goroutine:
//
//	┌──────────────┐   Receive    ┌────────────┐  HandleEvent  ┌───────────┐
//	│  Connection  │ ───────────▶ │ Dispatcher │ ────────────▶ │ Listeners │
//	└──────────────┘              └────────────┘               └───────────┘
//	       ▲                         │      │ OnStart/OnDeath/OnDisconnect
//	       │ Resume (vote)           │      ▼
//	       └─────────────────────────┘   Target
//	                                 │
//	                                 ▼ Publish (once per group)
//	                               Sink
//
// Listener and lifecycle callbacks run synchronously on the loop goroutine.
// A slow listener stalls delivery of every later group for that connection.
//
// # Voting
//
// A group is resumed only when at least one listener handled one of its
// events and every listener that did voted to resume. Groups made only of
// lifecycle or unrecognized events are never resumed here.
//
// # Shutdown
//
// Shutdown sets an advisory flag. The loop checks it before each receive and
// before each event of a group; a receive already in flight completes on its
// own. VM death and disconnect events set the flag themselves.
//
// # Listener failures
//
// By default a panicking listener is recovered, logged and counted. It does
// not count as participation, and it forces the group to stay suspended.
// WithListenerIsolation(false) lets the panic escape Run instead.
//
// # Registration races
//
// AddListener and RemoveListener may be called from any goroutine while a
// group is being dispatched. A listener removed after its lookup still
// receives that one event.
package dispatch
