package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/remotedebug/internal/debug/event"
)

// Conn is a connection to a debuggee agent.
type Conn struct {
	transport  Transport
	seq        atomic.Int64
	bufferSize int
	logger     zerolog.Logger

	pending   map[int]*pendingRequest
	pendingMu sync.Mutex

	requests   map[int]*event.Request
	requestsMu sync.RWMutex

	groups      chan *event.Group
	sawTerminal atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	finished  chan struct{}

	err   error
	errMu sync.RWMutex
}

// pendingRequest tracks a request awaiting its response.
type pendingRequest struct {
	done      chan struct{}
	closeOnce sync.Once
	response  *Response
	err       error

	// accept runs on the receive goroutine for a successful response,
	// before any later message is handled.
	accept func(*Response) error
}

func (p *pendingRequest) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// NewConn starts reading from transport.
func NewConn(transport Transport, opts ...ConnOption) *Conn {
	c := &Conn{
		transport:  transport,
		bufferSize: DefaultGroupBuffer,
		logger:     zerolog.Nop(),
		pending:    make(map[int]*pendingRequest),
		requests:   make(map[int]*event.Request),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.groups = make(chan *event.Group, c.bufferSize)

	go c.receiveLoop()
	return c
}

// Close closes the connection. Groups already queued can still be received.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close()
	})
	return err
}

// Err returns the transport error that ended the connection, if any.
func (c *Conn) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// lostErr is what callers see once the connection has ended.
func (c *Conn) lostErr() error {
	if c.closed() {
		return event.ErrClosed
	}
	return event.ErrDisconnected
}

// Receive returns the next event group. Once the connection has ended and
// every queued group was returned, it reports event.ErrDisconnected, or
// event.ErrClosed after a local Close.
func (c *Conn) Receive(ctx context.Context) (*event.Group, error) {
	select {
	case g, ok := <-c.groups:
		if !ok {
			return nil, c.lostErr()
		}
		return g, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resume lets the threads suspended by group continue. Groups that
// suspended nothing are not sent.
func (c *Conn) Resume(ctx context.Context, group *event.Group) error {
	if group.SuspendPolicy == event.SuspendNone {
		return nil
	}
	_, err := c.sendRequest(ctx, CommandResume, ResumeArguments{GroupID: group.ID}, nil)
	return err
}

// CreateRequest registers a condition of interest and returns its handle.
//
// The agent may report the request as soon as it answers. bind, if not nil,
// is called with the new handle on the receive goroutine before any event
// that follows the answer is queued, so a listener added there sees every
// hit. bind must not block.
func (c *Conn) CreateRequest(ctx context.Context, spec RequestSpec, bind func(*event.Request)) (*event.Request, error) {
	var req *event.Request
	_, err := c.sendRequest(ctx, CommandCreateRequest, spec.arguments(), func(resp *Response) error {
		id := gjson.GetBytes(resp.Body, "requestId")
		if !id.Exists() || id.Int() == 0 {
			return fmt.Errorf("%s: response has no requestId", CommandCreateRequest)
		}

		req = event.NewRequest(int(id.Int()), spec.Kind, spec.SuspendPolicy)
		c.requestsMu.Lock()
		c.requests[req.WireID()] = req
		c.requestsMu.Unlock()

		if bind != nil {
			bind(req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// DeleteRequest removes a condition of interest. Events for it that arrive
// afterwards carry no request.
func (c *Conn) DeleteRequest(ctx context.Context, req *event.Request) error {
	c.requestsMu.Lock()
	delete(c.requests, req.WireID())
	c.requestsMu.Unlock()

	_, err := c.sendRequest(ctx, CommandDeleteRequest, DeleteRequestArguments{RequestID: req.WireID()}, nil)
	return err
}

// Dispose asks the agent to end the session and let the debuggee run free.
func (c *Conn) Dispose(ctx context.Context) error {
	_, err := c.sendRequest(ctx, CommandDispose, nil, nil)
	return err
}

// RequestCount returns the number of live request handles.
func (c *Conn) RequestCount() int {
	c.requestsMu.RLock()
	defer c.requestsMu.RUnlock()
	return len(c.requests)
}

func (c *Conn) resolve(wireID int) *event.Request {
	c.requestsMu.RLock()
	defer c.requestsMu.RUnlock()
	return c.requests[wireID]
}

// receiveLoop reads frames until the transport fails.
func (c *Conn) receiveLoop() {
	defer c.finish()

	for {
		msg, err := c.transport.Receive()
		if err != nil {
			if !c.closed() {
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
				c.logger.Debug().Err(err).Msg("transport receive failed")
			}
			return
		}
		c.handleMessage(msg)
	}
}

// finish fails pending requests, queues a final disconnect group if the
// agent never reported one, and closes the group channel.
func (c *Conn) finish() {
	lost := c.lostErr()

	c.pendingMu.Lock()
	for _, req := range c.pending {
		req.err = lost
		req.close()
	}
	c.pending = make(map[int]*pendingRequest)
	close(c.finished)
	c.pendingMu.Unlock()

	if c.sawTerminal.CompareAndSwap(false, true) {
		c.queue(&event.Group{
			SuspendPolicy: event.SuspendNone,
			Events:        []event.Event{{Kind: event.VMDisconnect}},
		})
	}

	close(c.groups)
}

// queue hands a group to Receive. It gives up only after a local Close.
func (c *Conn) queue(g *event.Group) {
	select {
	case c.groups <- g:
	case <-c.done:
		c.logger.Debug().Int64("group", g.ID).Msg("dropping group after close")
	}
}

func (c *Conn) handleMessage(msg *Message) {
	switch typ := gjson.GetBytes(msg.Content, "type").String(); typ {
	case TypeResponse:
		c.handleResponse(msg.Content)
	case TypeEventGroup:
		c.handleEventGroup(msg.Content)
	default:
		c.logger.Debug().Str("type", typ).Err(ErrUnexpectedMessage).Msg("ignoring message")
	}
}

func (c *Conn) handleResponse(content []byte) {
	seq := int(gjson.GetBytes(content, "request_seq").Int())

	c.pendingMu.Lock()
	req, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug().Int("request_seq", seq).Msg("response for unknown request")
		return
	}

	var resp Response
	if err := json.Unmarshal(content, &resp); err != nil {
		req.err = fmt.Errorf("decode response: %w", err)
	} else {
		req.response = &resp
		if resp.Success && req.accept != nil {
			req.err = req.accept(&resp)
		}
	}
	req.close()
}

func (c *Conn) handleEventGroup(content []byte) {
	var msg EventGroup
	if err := json.Unmarshal(content, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("malformed event group")
		return
	}

	group := &event.Group{
		ID:            msg.GroupID,
		SuspendPolicy: event.ParseSuspendPolicy(msg.SuspendPolicy),
		Events:        make([]event.Event, 0, len(msg.Events)),
	}

	raws := gjson.GetBytes(content, "events").Array()
	for i, we := range msg.Events {
		var raw json.RawMessage
		if i < len(raws) {
			raw = json.RawMessage(raws[i].Raw)
		}
		ev := decodeEvent(we, raw, c.resolve)
		if ev.Kind == event.VMDeath || ev.Kind == event.VMDisconnect {
			c.sawTerminal.Store(true)
		}
		group.Events = append(group.Events, ev)
	}

	c.logger.Trace().Int64("group", group.ID).Int("events", len(group.Events)).Msg("received group")
	c.queue(group)
}

// sendRequest sends a command and waits for its response. accept, if not
// nil, is run by the receive loop on success.
func (c *Conn) sendRequest(ctx context.Context, command string, args any, accept func(*Response) error) (*Response, error) {
	if c.closed() {
		return nil, event.ErrClosed
	}

	var argsJSON json.RawMessage
	if args != nil {
		var err error
		argsJSON, err = json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
	}

	content, err := json.Marshal(Request{
		ProtocolMessage: ProtocolMessage{Type: TypeRequest},
		Command:         command,
		Arguments:       argsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	seq := int(c.seq.Add(1))
	content, err = sjson.SetBytes(content, "seq", seq)
	if err != nil {
		return nil, fmt.Errorf("stamp request: %w", err)
	}

	pending := &pendingRequest{done: make(chan struct{}), accept: accept}

	c.pendingMu.Lock()
	select {
	case <-c.finished:
		c.pendingMu.Unlock()
		return nil, c.lostErr()
	default:
	}
	c.pending[seq] = pending
	c.pendingMu.Unlock()

	if err := c.transport.Send(&Message{ContentLength: len(content), Content: content}); err != nil {
		c.dropPending(seq)
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	select {
	case <-ctx.Done():
		if c.dropPending(seq) {
			return nil, ctx.Err()
		}
		// The receive loop already claimed the response; accept may have
		// run, so report what it produced.
		<-pending.done
	case <-pending.done:
	}

	if pending.err != nil {
		return nil, pending.err
	}
	resp := pending.response
	if !resp.Success {
		return nil, &InternalError{Command: command, Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

// dropPending forgets seq and reports whether it was still waiting.
func (c *Conn) dropPending(seq int) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	_, ok := c.pending[seq]
	delete(c.pending, seq)
	return ok
}

// IsLost reports whether err means the connection is gone.
func IsLost(err error) bool {
	return errors.Is(err, event.ErrDisconnected) || errors.Is(err, event.ErrClosed)
}
