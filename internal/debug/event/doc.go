// Package event defines the protocol-level vocabulary shared by the remote
// connection, the dispatcher and the listeners: requests, events and the
// atomically delivered groups that carry them.
//
// # Requests
//
// A Request is an opaque handle for a condition of interest registered with
// the remote side (a breakpoint, a watchpoint, an exception filter). Its
// pointer identity is what the dispatcher keys listeners by; nothing outside
// the connection inspects its fields for routing.
//
// # Groups
//
// The remote side reports occurrences as a Group: an ordered batch of events
// that happened together. The group, not the individual event, is the unit
// of resume.
//
//	Group{ID: 12, SuspendPolicy: SuspendAll}
//	  ├── Event{Kind: Breakpoint, Request: bp1}
//	  └── Event{Kind: MethodEntry, Request: entry3}
//
// Lifecycle events (VMStart, VMDeath, VMDisconnect) never carry a request.
package event
