package model

import "github.com/rs/zerolog"

// LogSink writes every published event to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "model").Logger()}
}

// Publish logs each event in the batch.
func (s *LogSink) Publish(batch []Event) {
	for _, e := range batch {
		entry := s.logger.Info().
			Str("kind", e.Kind.String()).
			Str("detail", e.Detail.String()).
			Str("source", e.Source)
		if e.Thread != 0 {
			entry = entry.Int64("thread", e.Thread)
		}
		if len(e.Data) > 0 {
			entry = entry.Fields(e.Data)
		}
		entry.Msg("debug event")
	}
}
