package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/credentials"
	"github.com/triage-ai/denywatch/internal/job"
	"github.com/triage-ai/denywatch/internal/source"
)

// Status is the aggregate outcome of one run.
type Status int

const (
	StatusAllSucceeded Status = iota + 1
	StatusPartialFailure
	StatusAllFailed
)

// String returns the status name used in logs and the summary.
func (s Status) String() string {
	switch s {
	case StatusAllSucceeded:
		return "all_succeeded"
	case StatusPartialFailure:
		return "partial_failure"
	case StatusAllFailed:
		return "all_failed"
	default:
		return "unknown"
	}
}

// ExitCode maps a run status to the process exit code. Partial failure is
// a warning, not a failure: the successful exports are still usable.
func (s Status) ExitCode() int {
	if s == StatusAllFailed {
		return 1
	}
	return 0
}

// ErrNoSources is returned when a run has no resolvable source
// configuration at all. This is the only job-independent fatal condition.
var ErrNoSources = errors.New("no sources configured")

// JobRunner is one ready-to-run extraction job.
type JobRunner interface {
	Run(ctx context.Context, start, end time.Time) job.Result
}

// Source binds a source kind to its credential reference and a factory
// that builds the job once the credential is resolved.
type Source struct {
	Kind          source.Kind
	CredentialRef string
	Build         func(secret string) JobRunner
}

// Exporter runs the optional post-run export/upload step.
type Exporter interface {
	Export(ctx context.Context, batchID string, start, end time.Time, results []job.Result) error
}

// Summary aggregates all job results for one run. Immutable once returned.
type Summary struct {
	RunID       string
	Start, End  time.Time
	Results     []job.Result
	TotalEvents int
	Status      Status
}

// Orchestrator sequences the configured extraction jobs, tolerating
// individual failures, and aggregates their results.
type Orchestrator struct {
	creds    credentials.Store
	sources  []Source
	exporter Exporter // nil disables the export step
	logger   *zap.Logger
}

// New creates an Orchestrator. exporter may be nil.
func New(creds credentials.Store, sources []Source, exporter Exporter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		creds:    creds,
		sources:  sources,
		exporter: exporter,
		logger:   logger,
	}
}

// Run executes every configured job exactly once, in configuration order.
// A job failure never aborts the run; a missing credential fails only the
// jobs that need it. The returned error is non-nil only when no sources
// are configured.
func (o *Orchestrator) Run(ctx context.Context, start, end time.Time) (*Summary, error) {
	if len(o.sources) == 0 {
		return nil, ErrNoSources
	}

	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))
	logger.Info("starting extraction run",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("sources", len(o.sources)),
	)

	results := make([]job.Result, 0, len(o.sources))
	for _, src := range o.sources {
		secret := ""
		if src.CredentialRef != "" {
			var err error
			secret, err = o.creds.Resolve(ctx, src.CredentialRef)
			if err != nil {
				logger.Error("credential unavailable, marking job failed",
					zap.String("source", src.Kind.String()),
					zap.String("credential_ref", src.CredentialRef),
					zap.Error(err),
				)
				results = append(results, job.Result{
					Source: src.Kind,
					Err:    fmt.Errorf("credential unavailable: %w", err),
				})
				continue
			}
		}
		results = append(results, src.Build(secret).Run(ctx, start, end))
	}

	summary := aggregate(runID, start, end, results)
	logger.Info("extraction run complete",
		zap.String("status", summary.Status.String()),
		zap.Int("total_events", summary.TotalEvents),
	)
	if summary.Status == StatusPartialFailure {
		logger.Warn("one or more extraction jobs failed; exported data is incomplete")
	}

	o.export(ctx, summary)
	return summary, nil
}

// export runs the optional upload step when at least one job produced
// output. Export failures are logged and never change job-level results.
func (o *Orchestrator) export(ctx context.Context, summary *Summary) {
	if o.exporter == nil {
		return
	}
	any := false
	for _, r := range summary.Results {
		if r.Succeeded && r.OutputLocation != "" {
			any = true
			break
		}
	}
	if !any {
		o.logger.Info("no job produced output, skipping export step")
		return
	}
	if err := o.exporter.Export(ctx, summary.RunID, summary.Start, summary.End, summary.Results); err != nil {
		o.logger.Warn("export step failed; job results unchanged",
			zap.String("run_id", summary.RunID),
			zap.Error(err),
		)
	}
}

// aggregate folds job results into the run summary.
func aggregate(runID string, start, end time.Time, results []job.Result) *Summary {
	total := 0
	succeeded := 0
	for _, r := range results {
		if r.Succeeded {
			succeeded++
			total += r.EventCount
		}
	}

	var status Status
	switch succeeded {
	case len(results):
		status = StatusAllSucceeded
	case 0:
		status = StatusAllFailed
	default:
		status = StatusPartialFailure
	}

	return &Summary{
		RunID:       runID,
		Start:       start,
		End:         end,
		Results:     results,
		TotalEvents: total,
		Status:      status,
	}
}
