// Package wiretest provides a scripted debuggee agent for exercising wire
// connections in tests.
package wiretest

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/dshills/remotedebug/internal/debug/wire"
)

// Failure makes the peer answer a command with an error response.
type Failure struct {
	Message string
	Code    int
}

// Peer is the agent side of an in-memory connection. It answers every
// request on its own goroutine and records what it was sent.
type Peer struct {
	transport *wire.RawTransport

	mu        sync.Mutex
	seq       int
	nextReqID int
	nextGroup int64
	requests  []wire.Request
	resumed   []int64
	created   []int
	deleted   []int
	failures  map[string]Failure
	silent    map[string]bool
	onCreate  func(requestID int)
	notify    chan struct{}

	done chan struct{}
}

// New creates a peer and returns the client-side transport connected to it.
func New() (*Peer, wire.Transport) {
	agentSide, clientSide := net.Pipe()
	p := &Peer{
		transport: wire.NewRawTransport(agentSide),
		nextReqID: 100,
		failures:  make(map[string]Failure),
		silent:    make(map[string]bool),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go p.serve()
	return p, wire.NewRawTransport(clientSide)
}

// Fail makes every later request for command fail.
func (p *Peer) Fail(command string, f Failure) {
	p.mu.Lock()
	p.failures[command] = f
	p.mu.Unlock()
}

// Silence makes the peer never answer command.
func (p *Peer) Silence(command string) {
	p.mu.Lock()
	p.silent[command] = true
	p.mu.Unlock()
}

// OnCreate makes the peer call fn with the id of every request it creates,
// right after the answer was written and before the next request is read.
// It models an agent that reports a request as soon as it exists.
func (p *Peer) OnCreate(fn func(requestID int)) {
	p.mu.Lock()
	p.onCreate = fn
	p.mu.Unlock()
}

// SendGroup sends an event group and returns its id.
func (p *Peer) SendGroup(policy string, events ...wire.WireEvent) (int64, error) {
	p.mu.Lock()
	p.nextGroup++
	id := p.nextGroup
	p.seq++
	msg := wire.EventGroup{
		ProtocolMessage: wire.ProtocolMessage{Seq: p.seq, Type: wire.TypeEventGroup},
		GroupID:         id,
		SuspendPolicy:   policy,
		Events:          events,
	}
	p.mu.Unlock()

	return id, p.send(msg)
}

// SendRaw sends an arbitrary JSON body.
func (p *Peer) SendRaw(content string) error {
	return p.transport.Send(&wire.Message{ContentLength: len(content), Content: json.RawMessage(content)})
}

// Close drops the connection, as if the debuggee vanished.
func (p *Peer) Close() error {
	return p.transport.Close()
}

// Done is closed when the peer stops serving.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Requests returns every request received so far.
func (p *Peer) Requests() []wire.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wire.Request(nil), p.requests...)
}

// Commands returns the command names received so far, in order.
func (p *Peer) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.requests))
	for i, r := range p.requests {
		out[i] = r.Command
	}
	return out
}

// Resumed returns the group ids resumed so far.
func (p *Peer) Resumed() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.resumed...)
}

// Created returns the request ids assigned so far, in order.
func (p *Peer) Created() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.created...)
}

// Deleted returns the request ids deleted so far.
func (p *Peer) Deleted() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.deleted...)
}

// WaitFor blocks until cond holds or timeout elapses.
func (p *Peer) WaitFor(cond func(*Peer) bool, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if cond(p) {
			return true
		}
		select {
		case <-p.notify:
		case <-deadline:
			return cond(p)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (p *Peer) serve() {
	defer close(p.done)

	for {
		msg, err := p.transport.Receive()
		if err != nil {
			return
		}

		var req wire.Request
		if err := json.Unmarshal(msg.Content, &req); err != nil || req.Type != wire.TypeRequest {
			continue
		}

		resp, answer := p.handle(req)
		select {
		case p.notify <- struct{}{}:
		default:
		}
		if !answer {
			continue
		}
		if err := p.send(resp); err != nil {
			return
		}
		if fn := p.createHook(resp); fn != nil {
			var body wire.CreateRequestResponseBody
			_ = json.Unmarshal(resp.Body, &body)
			fn(body.RequestID)
		}
	}
}

func (p *Peer) handle(req wire.Request) (wire.Response, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	p.seq++
	resp := wire.Response{
		ProtocolMessage: wire.ProtocolMessage{Seq: p.seq, Type: wire.TypeResponse},
		RequestSeq:      req.Seq,
		Command:         req.Command,
		Success:         true,
	}

	if p.silent[req.Command] {
		return resp, false
	}
	if f, ok := p.failures[req.Command]; ok {
		resp.Success = false
		resp.Message = f.Message
		resp.Code = f.Code
		return resp, true
	}

	switch req.Command {
	case wire.CommandCreateRequest:
		p.nextReqID++
		p.created = append(p.created, p.nextReqID)
		body, _ := json.Marshal(wire.CreateRequestResponseBody{RequestID: p.nextReqID})
		resp.Body = body
	case wire.CommandDeleteRequest:
		var args wire.DeleteRequestArguments
		_ = json.Unmarshal(req.Arguments, &args)
		p.deleted = append(p.deleted, args.RequestID)
	case wire.CommandResume:
		var args wire.ResumeArguments
		_ = json.Unmarshal(req.Arguments, &args)
		p.resumed = append(p.resumed, args.GroupID)
	}
	return resp, true
}

func (p *Peer) createHook(resp wire.Response) func(int) {
	if resp.Command != wire.CommandCreateRequest || !resp.Success {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onCreate
}

func (p *Peer) send(v any) error {
	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.transport.Send(&wire.Message{ContentLength: len(content), Content: content})
}
