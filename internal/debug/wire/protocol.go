package wire

import (
	"encoding/json"

	"github.com/dshills/remotedebug/internal/debug/event"
)

// Message types.
const (
	TypeRequest    = "request"
	TypeResponse   = "response"
	TypeEventGroup = "eventGroup"
)

// Commands understood by the debuggee agent.
const (
	CommandCreateRequest = "createRequest"
	CommandDeleteRequest = "deleteRequest"
	CommandResume        = "resume"
	CommandDispose       = "dispose"
)

// ProtocolMessage is the base of every message.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`
}

// Request is a command sent to the debuggee agent.
type Request struct {
	ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response answers a Request.
type Response struct {
	ProtocolMessage
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Code       int             `json:"code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// EventGroup is the wire form of an event.Group.
type EventGroup struct {
	ProtocolMessage
	GroupID       int64       `json:"groupId"`
	SuspendPolicy string      `json:"suspendPolicy,omitempty"`
	Events        []WireEvent `json:"events"`
}

// WireEvent is the wire form of an event.Event.
type WireEvent struct {
	Kind      string               `json:"kind"`
	RequestID int                  `json:"requestId,omitempty"`
	Thread    int64                `json:"thread,omitempty"`
	Location  *event.Location      `json:"location,omitempty"`
	Exception *event.ExceptionInfo `json:"exception,omitempty"`
	Field     string               `json:"field,omitempty"`
	OldValue  string               `json:"oldValue,omitempty"`
	Value     string               `json:"value,omitempty"`
	ExitCode  int                  `json:"exitCode,omitempty"`
}

// CreateRequestArguments are the arguments of createRequest.
type CreateRequestArguments struct {
	Kind          string          `json:"kind"`
	SuspendPolicy string          `json:"suspendPolicy"`
	Location      *event.Location `json:"location,omitempty"`
	ClassFilter   string          `json:"classFilter,omitempty"`
	Field         string          `json:"field,omitempty"`
	Caught        bool            `json:"caught,omitempty"`
	Uncaught      bool            `json:"uncaught,omitempty"`
	Thread        int64           `json:"thread,omitempty"`
	StepDepth     string          `json:"stepDepth,omitempty"`
}

// CreateRequestResponseBody is the body of a successful createRequest.
type CreateRequestResponseBody struct {
	RequestID int `json:"requestId"`
}

// DeleteRequestArguments are the arguments of deleteRequest.
type DeleteRequestArguments struct {
	RequestID int `json:"requestId"`
}

// ResumeArguments are the arguments of resume.
type ResumeArguments struct {
	GroupID int64 `json:"groupId"`
}

// RequestSpec describes a condition of interest to register remotely.
type RequestSpec struct {
	Kind          event.Kind
	SuspendPolicy event.SuspendPolicy
	Location      *event.Location
	ClassFilter   string
	Field         string
	Caught        bool
	Uncaught      bool
	Thread        int64

	// StepDepth is "into", "over" or "out" for step requests.
	StepDepth string
}

func (s RequestSpec) arguments() CreateRequestArguments {
	return CreateRequestArguments{
		Kind:          s.Kind.String(),
		SuspendPolicy: s.SuspendPolicy.String(),
		Location:      s.Location,
		ClassFilter:   s.ClassFilter,
		Field:         s.Field,
		Caught:        s.Caught,
		Uncaught:      s.Uncaught,
		Thread:        s.Thread,
		StepDepth:     s.StepDepth,
	}
}

// decodeEvent converts a wire event. resolve maps a request id to its
// handle and may return nil.
func decodeEvent(we WireEvent, raw json.RawMessage, resolve func(int) *event.Request) event.Event {
	ev := event.Event{
		Kind:      event.ParseKind(we.Kind),
		Thread:    we.Thread,
		Exception: we.Exception,
		Field:     we.Field,
		OldValue:  we.OldValue,
		Value:     we.Value,
		ExitCode:  we.ExitCode,
		Raw:       raw,
	}
	if we.Location != nil {
		ev.Location = *we.Location
	}
	if we.RequestID != 0 {
		ev.Request = resolve(we.RequestID)
	}
	return ev
}
