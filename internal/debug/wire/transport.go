package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Transport carries framed messages to and from the debuggee.
type Transport interface {
	// Send writes one message.
	Send(msg *Message) error

	// Receive blocks until one message has been read.
	Receive() (*Message, error)

	// Close releases the transport. A blocked Receive returns an error.
	Close() error
}

// Message is one framed protocol message.
type Message struct {
	// ContentLength is the length of the content.
	ContentLength int

	// ContentType is the MIME type (optional).
	ContentType string

	// Content is the JSON body.
	Content json.RawMessage
}

// Frame limits.
const (
	// MaxContentLength is the largest accepted message body.
	MaxContentLength = 10 << 20

	// MaxHeaderLine bounds a single header line, terminator included.
	MaxHeaderLine = 1024

	// MaxHeaders bounds the number of header lines in one frame.
	MaxHeaders = 8
)

var (
	headerContentLength = []byte("Content-Length")
	headerContentType   = []byte("Content-Type")
)

// framer reads and writes Content-Length framed messages on a stream.
// Receive is only called from one goroutine; Send may be called from many.
type framer struct {
	r *bufio.Reader

	wmu     sync.Mutex
	w       io.Writer
	scratch []byte
}

func newFramer(r io.Reader, w io.Writer) *framer {
	return &framer{
		r: bufio.NewReaderSize(r, MaxHeaderLine),
		w: w,
	}
}

// Send writes the header block and the body with a single Write.
func (f *framer) Send(msg *Message) error {
	f.wmu.Lock()
	defer f.wmu.Unlock()

	buf := f.scratch[:0]
	buf = append(buf, headerContentLength...)
	buf = append(buf, ": "...)
	buf = strconv.AppendInt(buf, int64(len(msg.Content)), 10)
	buf = append(buf, "\r\n"...)
	if msg.ContentType != "" {
		buf = append(buf, headerContentType...)
		buf = append(buf, ": "...)
		buf = append(buf, msg.ContentType...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	buf = append(buf, msg.Content...)
	f.scratch = buf

	if _, err := f.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive reads one frame.
func (f *framer) Receive() (*Message, error) {
	msg := &Message{ContentLength: -1}

	for n := 0; ; n++ {
		line, err := f.r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			return nil, fmt.Errorf("%w: header line longer than %d bytes", ErrMalformedFrame, MaxHeaderLine)
		case err != nil:
			return nil, fmt.Errorf("read header: %w", err)
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if n == 0 {
				// Tolerate stray blank lines between frames.
				n = -1
				continue
			}
			break
		}
		if n >= MaxHeaders {
			return nil, fmt.Errorf("%w: more than %d headers", ErrMalformedFrame, MaxHeaders)
		}
		if err := msg.setHeader(line); err != nil {
			return nil, err
		}
	}

	if msg.ContentLength < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length", ErrMalformedFrame)
	}

	msg.Content = make(json.RawMessage, msg.ContentLength)
	if _, err := io.ReadFull(f.r, msg.Content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return msg, nil
}

// setHeader applies one "Name: value" line to msg. Unknown headers are
// ignored.
func (msg *Message) setHeader(line []byte) error {
	name, value, ok := bytes.Cut(line, []byte(":"))
	if !ok {
		return fmt.Errorf("%w: header %q has no colon", ErrMalformedFrame, line)
	}
	name = bytes.TrimSpace(name)
	value = bytes.TrimSpace(value)

	switch {
	case bytes.EqualFold(name, headerContentLength):
		if msg.ContentLength >= 0 {
			return fmt.Errorf("%w: duplicate Content-Length", ErrMalformedFrame)
		}
		n, err := strconv.Atoi(string(value))
		if err != nil || n < 0 {
			return fmt.Errorf("%w: bad Content-Length %q", ErrMalformedFrame, value)
		}
		if n > MaxContentLength {
			return fmt.Errorf("%w: Content-Length %d over limit %d", ErrMalformedFrame, n, MaxContentLength)
		}
		msg.ContentLength = n
	case bytes.EqualFold(name, headerContentType):
		msg.ContentType = string(value)
	}
	return nil
}

// RawTransport frames messages over any io.ReadWriteCloser.
type RawTransport struct {
	*framer
	rwc io.ReadWriteCloser
}

// NewRawTransport creates a transport from rwc.
func NewRawTransport(rwc io.ReadWriteCloser) *RawTransport {
	return &RawTransport{framer: newFramer(rwc, rwc), rwc: rwc}
}

// Close closes the underlying stream.
func (t *RawTransport) Close() error {
	return t.rwc.Close()
}

// SocketTransport talks to an agent listening on TCP.
type SocketTransport struct {
	*framer
	conn net.Conn
}

// DialSocket connects to address. A zero timeout waits as long as the
// operating system allows.
func DialSocket(address string, timeout time.Duration) (*SocketTransport, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &TimeoutError{Op: "dial " + address, Err: err}
		}
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewSocketTransport(conn), nil
}

// NewSocketTransport wraps an established connection.
func NewSocketTransport(conn net.Conn) *SocketTransport {
	return &SocketTransport{framer: newFramer(conn, conn), conn: conn}
}

// Receive reads a frame. An expired read deadline is reported as a
// *TimeoutError.
func (t *SocketTransport) Receive() (*Message, error) {
	msg, err := t.framer.Receive()
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, &TimeoutError{Op: "receive", Err: err}
	}
	return msg, err
}

// Close closes the socket.
func (t *SocketTransport) Close() error {
	return t.conn.Close()
}

// AgentStopGrace is how long Close waits for a stdio agent to exit on its
// own after its stdin is closed.
const AgentStopGrace = 2 * time.Second

// StdioTransport runs the agent as a child process and talks to it over
// its stdin and stdout.
type StdioTransport struct {
	*framer
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File

	exited    chan struct{}
	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

// NewStdioTransport starts cmd and connects to its stdio.
//
// The read end of the agent's stdout stays open after the agent exits, so
// frames it wrote just before exiting are still delivered.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdin: %w", err)
	}
	stdout, agentOut, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("agent stdout: %w", err)
	}
	cmd.Stdout = agentOut

	err = cmd.Start()
	agentOut.Close()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start agent %s: %w", cmd.Path, err)
	}

	t := &StdioTransport{
		framer: newFramer(stdout, stdin),
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		exited: make(chan struct{}),
	}
	go func() {
		t.waitErr = cmd.Wait()
		close(t.exited)
	}()
	return t, nil
}

// Exited is closed once the agent process has exited and been reaped.
func (t *StdioTransport) Exited() <-chan struct{} {
	return t.exited
}

// Close closes the agent's stdin and waits AgentStopGrace for it to exit,
// then kills it. An agent that was killed here is not an error.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		t.stdin.Close()
		defer t.stdout.Close()

		timer := time.NewTimer(AgentStopGrace)
		defer timer.Stop()

		select {
		case <-t.exited:
			t.closeErr = t.waitErr
			var exitErr *exec.ExitError
			if errors.As(t.closeErr, &exitErr) {
				t.closeErr = nil
			}
		case <-timer.C:
			if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				t.closeErr = fmt.Errorf("kill agent: %w", err)
			}
			<-t.exited
		}
	})
	return t.closeErr
}
