// Package logging builds the zerolog loggers used across rdbg.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options configure New.
type Options struct {
	// Level is a zerolog level name. Empty means info.
	Level string

	// Format is "json" or "console". Empty means json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// Level is a log level that can be changed while loggers are in use.
// It works as a zerolog hook discarding events below the current level.
type Level struct {
	v atomic.Int32
}

// NewLevel returns a Level set to lvl.
func NewLevel(lvl zerolog.Level) *Level {
	l := &Level{}
	l.store(lvl)
	return l
}

// store also lowers zerolog's global floor, which drops trace by default.
func (l *Level) store(lvl zerolog.Level) {
	if lvl < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
	}
	l.v.Store(int32(lvl))
}

// Get returns the current level.
func (l *Level) Get() zerolog.Level {
	return zerolog.Level(l.v.Load())
}

// Set changes the level by name.
func (l *Level) Set(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.store(lvl)
	return nil
}

// Run implements zerolog.Hook.
func (l *Level) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < l.Get() {
		e.Discard()
	}
}

// New creates a root logger and the Level controlling it.
func New(opts Options) (zerolog.Logger, *Level, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch opts.Format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: !isTerminal(out)}
	default:
		return zerolog.Nop(), nil, fmt.Errorf("log format %q: want json or console", opts.Format)
	}

	level := NewLevel(lvl)
	logger := zerolog.New(out).
		Level(zerolog.TraceLevel).
		Hook(level).
		With().Timestamp().Logger()
	return logger, level, nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
