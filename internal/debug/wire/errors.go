package wire

import (
	"errors"
	"fmt"
)

// ErrUnexpectedMessage is returned for frames that are valid JSON but not
// a known message type.
var ErrUnexpectedMessage = errors.New("unexpected message")

// ErrMalformedFrame is wrapped by every framing error: bad or missing
// headers, and bodies over MaxContentLength.
var ErrMalformedFrame = errors.New("malformed frame")

// TimeoutError reports a transport operation that exceeded its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return "transport timeout: " + e.Op
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Timeout reports true, matching net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// InternalError is a failure reported by the debuggee agent itself.
type InternalError struct {
	Command string
	Code    int
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s failed (code %d): %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}
