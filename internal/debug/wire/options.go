package wire

import "github.com/rs/zerolog"

// DefaultGroupBuffer is how many received groups may wait for Receive.
const DefaultGroupBuffer = 64

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(logger zerolog.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger.With().Str("component", "wire").Logger()
	}
}

// WithGroupBuffer sets how many groups may be queued ahead of Receive.
func WithGroupBuffer(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}
