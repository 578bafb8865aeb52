package dispatch

import "github.com/rs/zerolog"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.With().Str("component", "dispatch").Logger()
	}
}

// WithListenerIsolation controls whether panicking callbacks are recovered.
// It is enabled by default.
func WithListenerIsolation(enabled bool) Option {
	return func(d *Dispatcher) {
		d.isolate = enabled
	}
}
