package job

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/sink"
	"github.com/triage-ai/denywatch/internal/source"
)

// Retriever is the slice of source.Retriever the job needs.
type Retriever interface {
	Retrieve(ctx context.Context, start, end time.Time) (*source.Result, error)
}

// Result is the outcome of one extraction job. It is created as a failed
// placeholder at job start and finalized exactly once.
type Result struct {
	Source         source.Kind
	Succeeded      bool
	EventCount     int
	OutputLocation string
	Err            error

	// Diagnostics surfaced in the run summary.
	RawCount  int
	Skipped   int // malformed records skipped with a warning
	Truncated bool
	Duration  time.Duration
}

// Job runs one source end to end: retrieve every raw record for the
// window, classify each one, and write the resulting events to the sink.
type Job struct {
	retriever  Retriever
	classifier classify.Classifier
	sink       sink.Sink
	logger     *zap.Logger
}

// New composes an extraction job for one source.
func New(retriever Retriever, classifier classify.Classifier, s sink.Sink, logger *zap.Logger) *Job {
	return &Job{
		retriever:  retriever,
		classifier: classifier,
		sink:       s,
		logger:     logger,
	}
}

// Run executes the job. Failures are captured in the Result and never
// propagate past the job boundary. Zero raw records and zero classified
// events are both success.
func (j *Job) Run(ctx context.Context, start, end time.Time) Result {
	kind := j.classifier.Source()
	res := Result{Source: kind}
	defer func(t0 time.Time) { res.Duration = time.Since(t0) }(time.Now())

	retrieved, err := j.retriever.Retrieve(ctx, start, end)
	if err != nil {
		res.Err = fmt.Errorf("retrieval failed: %w", err)
		j.logger.Error("extraction job failed during retrieval",
			zap.String("source", kind.String()),
			zap.Error(err),
		)
		return res
	}

	res.RawCount = len(retrieved.Records)
	res.Truncated = retrieved.Truncated

	events := make([]*classify.DenyEvent, 0, len(retrieved.Records))
	for _, raw := range retrieved.Records {
		ev, err := j.classifier.Classify(raw)
		if err != nil {
			res.Skipped++
			j.logger.Warn("skipping malformed record",
				zap.String("source", kind.String()),
				zap.Error(err),
			)
			continue
		}
		if ev == nil {
			continue
		}
		events = append(events, ev)
	}

	if res.RawCount == 0 {
		j.logger.Info("no raw records in window", zap.String("source", kind.String()))
	} else if len(events) == 0 {
		j.logger.Info("raw records present but none actionable",
			zap.String("source", kind.String()),
			zap.Int("raw_records", res.RawCount),
		)
	}

	location, err := j.sink.Write(ctx, kind, events)
	if err != nil {
		res.Err = fmt.Errorf("sink write failed: %w", err)
		j.logger.Error("extraction job failed writing output",
			zap.String("source", kind.String()),
			zap.Error(err),
		)
		return res
	}

	res.Succeeded = true
	res.EventCount = len(events)
	res.OutputLocation = location

	j.logger.Info("extraction job complete",
		zap.String("source", kind.String()),
		zap.Int("raw_records", res.RawCount),
		zap.Int("events", res.EventCount),
		zap.Int("skipped", res.Skipped),
		zap.Bool("truncated", res.Truncated),
		zap.String("output", location),
	)
	return res
}
