package target

import (
	"github.com/rs/zerolog"

	"github.com/dshills/remotedebug/internal/debug/dispatch"
)

// Option configures a Target.
type Option func(*Target)

// WithLogger sets the logger used by the target and its dispatcher.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Target) {
		t.logger = logger.With().Str("component", "target").Logger()
		t.dispatchOpts = append(t.dispatchOpts, dispatch.WithLogger(logger))
	}
}

// WithName sets the name used as the source of lifecycle model events.
func WithName(name string) Option {
	return func(t *Target) {
		if name != "" {
			t.name = name
		}
	}
}

// WithDispatchOptions passes options through to the dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(t *Target) {
		t.dispatchOpts = append(t.dispatchOpts, opts...)
	}
}
