package event

import "errors"

// Sentinel errors shared by connection implementations and their consumers.
var (
	// ErrDisconnected is returned once the remote connection is lost and every
	// group received before the loss has been handed out.
	ErrDisconnected = errors.New("remote connection lost")

	// ErrClosed is returned by operations attempted after a local Close.
	ErrClosed = errors.New("connection closed")
)
