package sink

import (
	"context"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/source"

	"go.uber.org/zap"
)

// Sink persists one source's classified events and returns a location
// descriptor for the output. An empty event slice is still written — an
// empty export is evidence, not an error.
type Sink interface {
	Write(ctx context.Context, kind source.Kind, events []*classify.DenyEvent) (string, error)
}

// LogSink is a fallback Sink for dry runs and local development.
// It logs each event instead of persisting it.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink that outputs events to the given logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, kind source.Kind, events []*classify.DenyEvent) (string, error) {
	for _, ev := range events {
		s.logger.Info("deny_event",
			zap.String("source", kind.String()),
			zap.Time("timestamp", ev.Timestamp),
			zap.String("subject_id", ev.SubjectID),
			zap.Strings("reason_codes", ev.Reasons.Values()),
			zap.Strings("policy_names", ev.Policies.Values()),
			zap.String("severity", ev.Severity.String()),
			zap.Bool("override_used", ev.OverrideUsed),
		)
	}
	return "log://" + kind.String(), nil
}
