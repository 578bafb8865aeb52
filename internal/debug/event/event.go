package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request is a condition of interest registered with the remote side.
// Requests are compared by pointer; the fields are fixed at creation.
type Request struct {
	id            uuid.UUID
	wireID        int
	kind          Kind
	suspendPolicy SuspendPolicy
}

// NewRequest creates a request handle for an identifier assigned by the
// remote side.
func NewRequest(wireID int, kind Kind, policy SuspendPolicy) *Request {
	return &Request{
		id:            uuid.New(),
		wireID:        wireID,
		kind:          kind,
		suspendPolicy: policy,
	}
}

// ID returns the client-side identifier of the request.
func (r *Request) ID() uuid.UUID { return r.id }

// WireID returns the identifier the remote side assigned.
func (r *Request) WireID() int { return r.wireID }

// Kind returns the kind of event the request asks for.
func (r *Request) Kind() Kind { return r.kind }

// SuspendPolicy returns the policy the request was created with.
func (r *Request) SuspendPolicy() SuspendPolicy { return r.suspendPolicy }

// String returns a short description for logs.
func (r *Request) String() string {
	if r == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s#%d", r.kind, r.wireID)
}

// Location is a position in the debuggee's code.
type Location struct {
	Class  string `json:"class,omitempty"`
	Method string `json:"method,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// String formats the location as Class.Method:Line.
func (l Location) String() string {
	switch {
	case l.Class == "":
		return "<unknown>"
	case l.Method == "":
		return fmt.Sprintf("%s:%d", l.Class, l.Line)
	default:
		return fmt.Sprintf("%s.%s:%d", l.Class, l.Method, l.Line)
	}
}

// ExceptionInfo describes a thrown exception.
type ExceptionInfo struct {
	Class         string   `json:"class"`
	Message       string   `json:"message,omitempty"`
	Caught        bool     `json:"caught"`
	CatchLocation Location `json:"catchLocation,omitempty"`
}

// Event is one occurrence reported by the remote side.
type Event struct {
	Kind     Kind
	Request  *Request
	Thread   int64
	Location Location

	// Exception is set for Exception events.
	Exception *ExceptionInfo

	// Field, OldValue and Value are set for watchpoint events.
	Field    string
	OldValue string
	Value    string

	// ExitCode is set for VMDeath events.
	ExitCode int

	// Raw holds the undecoded wire form of the event.
	Raw json.RawMessage
}

// Group is an ordered batch of events delivered together.
type Group struct {
	ID            int64
	SuspendPolicy SuspendPolicy
	Events        []Event
}

// Len returns the number of events in the group.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Events)
}
