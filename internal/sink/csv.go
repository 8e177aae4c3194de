package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/source"

	"go.uber.org/zap"
)

// csvHeader defines the serialized row shape. Set-valued fields are joined
// here, at the serialization boundary, and nowhere earlier.
var csvHeader = []string{
	"timestamp",
	"subject_id",
	"source",
	"reason_codes",
	"policy_names",
	"severity",
	"override_used",
	"raw_payload",
}

const setSeparator = ";"

// CSVSink writes one CSV file per source into a directory.
type CSVSink struct {
	dir    string
	stamp  string // filename suffix, usually the window start date
	logger *zap.Logger
}

// NewCSVSink creates a CSVSink writing into dir. The directory is created
// on first write. stamp distinguishes runs, e.g. "2026-01-25".
func NewCSVSink(dir, stamp string, logger *zap.Logger) *CSVSink {
	return &CSVSink{dir: dir, stamp: stamp, logger: logger}
}

// Write serializes the events to deny-events-<source>-<stamp>.csv and
// returns the file path. A zero-event write produces a header-only file.
func (s *CSVSink) Write(ctx context.Context, kind source.Kind, events []*classify.DenyEvent) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("csv sink: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("deny-events-%s-%s.csv", kind, s.stamp))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("csv sink: %w", err)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("csv sink: %w", err)
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return "", fmt.Errorf("csv sink: %w", ctx.Err())
		}
		row := []string{
			ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			ev.SubjectID,
			kind.String(),
			ev.Reasons.Join(setSeparator),
			ev.Policies.Join(setSeparator),
			ev.Severity.String(),
			strconv.FormatBool(ev.OverrideUsed),
			string(ev.Raw),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("csv sink: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("csv sink: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("csv sink: %w", err)
	}

	s.logger.Info("csv export written",
		zap.String("source", kind.String()),
		zap.String("path", path),
		zap.Int("events", len(events)),
	)
	return path, nil
}
