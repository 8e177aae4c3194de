package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/source"
)

type fakeRetriever struct {
	result *source.Result
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ time.Time) (*source.Result, error) {
	return f.result, f.err
}

type fakeSink struct {
	written []*classify.DenyEvent
	err     error
	calls   int
}

func (f *fakeSink) Write(_ context.Context, _ source.Kind, events []*classify.DenyEvent) (string, error) {
	f.calls++
	f.written = events
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/out.csv", nil
}

func window() (time.Time, time.Time) {
	start := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// End-to-end scenario: 3 audit records — one resource failure, one XPIA,
// one with no indicators — yield 2 events and a successful result.
func TestJobRun_AuditScenario(t *testing.T) {
	records := []source.RawRecord{
		[]byte(`{"CreationTime":"2026-01-25T01:00:00Z","UserId":"u1","AccessedResources":[{"Status":"failure"}]}`),
		[]byte(`{"CreationTime":"2026-01-25T02:00:00Z","UserId":"u2","AccessedResources":[{"XPIADetected":true}]}`),
		[]byte(`{"CreationTime":"2026-01-25T03:00:00Z","UserId":"u3","AccessedResources":[{"Status":"success"}]}`),
	}
	fs := &fakeSink{}
	j := New(&fakeRetriever{result: &source.Result{Records: records, Pages: 1}},
		classify.NewAuditClassifier(), fs, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if !res.Succeeded {
		t.Fatalf("expected success, got error: %v", res.Err)
	}
	if res.EventCount != 2 {
		t.Errorf("expected 2 events, got %d", res.EventCount)
	}
	if res.RawCount != 3 {
		t.Errorf("expected 3 raw records, got %d", res.RawCount)
	}
	if res.OutputLocation != "/tmp/out.csv" {
		t.Errorf("expected output location populated, got %q", res.OutputLocation)
	}
	if len(fs.written) != 2 {
		t.Errorf("expected 2 events written to sink, got %d", len(fs.written))
	}
}

func TestJobRun_ZeroRawRecordsIsSuccess(t *testing.T) {
	fs := &fakeSink{}
	j := New(&fakeRetriever{result: &source.Result{}}, classify.NewAuditClassifier(), fs, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if !res.Succeeded || res.EventCount != 0 {
		t.Errorf("zero raw records must be success with zero count, got %+v", res)
	}
	if fs.calls != 1 {
		t.Error("empty export must still be written")
	}
}

func TestJobRun_AllDiscardedIsSuccess(t *testing.T) {
	records := []source.RawRecord{
		[]byte(`{"CreationTime":"2026-01-25T01:00:00Z","UserId":"u1","AccessedResources":[{"Status":"success"}]}`),
	}
	j := New(&fakeRetriever{result: &source.Result{Records: records}},
		classify.NewAuditClassifier(), &fakeSink{}, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if !res.Succeeded || res.EventCount != 0 {
		t.Errorf("all-discarded must be success with zero count, got %+v", res)
	}
}

func TestJobRun_RetrievalFailureCaptured(t *testing.T) {
	fs := &fakeSink{}
	j := New(&fakeRetriever{err: errors.New("auth expired")},
		classify.NewAuditClassifier(), fs, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if res.Succeeded {
		t.Error("expected failure")
	}
	if res.Err == nil {
		t.Error("expected error detail populated")
	}
	if res.EventCount != 0 {
		t.Errorf("failed job must report zero events, got %d", res.EventCount)
	}
	if fs.calls != 0 {
		t.Error("sink must not be written after retrieval failure")
	}
}

func TestJobRun_MalformedRecordsSkipped(t *testing.T) {
	records := []source.RawRecord{
		[]byte(`not json at all`),
		[]byte(`{"CreationTime":"2026-01-25T01:00:00Z","UserId":"u1","AccessedResources":[{"Status":"failure"}]}`),
	}
	j := New(&fakeRetriever{result: &source.Result{Records: records}},
		classify.NewAuditClassifier(), &fakeSink{}, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if !res.Succeeded {
		t.Fatalf("malformed record must not fail the job: %v", res.Err)
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", res.Skipped)
	}
	if res.EventCount != 1 {
		t.Errorf("expected 1 event, got %d", res.EventCount)
	}
}

func TestJobRun_SinkFailureCaptured(t *testing.T) {
	records := []source.RawRecord{
		[]byte(`{"CreationTime":"2026-01-25T01:00:00Z","UserId":"u1","AccessedResources":[{"Status":"failure"}]}`),
	}
	j := New(&fakeRetriever{result: &source.Result{Records: records}},
		classify.NewAuditClassifier(), &fakeSink{err: errors.New("disk full")}, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if res.Succeeded {
		t.Error("expected failure on sink error")
	}
	if res.Err == nil {
		t.Error("expected error detail populated")
	}
}

func TestJobRun_TruncationPropagated(t *testing.T) {
	j := New(&fakeRetriever{result: &source.Result{Truncated: true}},
		classify.NewAuditClassifier(), &fakeSink{}, zap.NewNop())

	start, end := window()
	res := j.Run(context.Background(), start, end)

	if !res.Truncated {
		t.Error("truncation must be visible on the job result")
	}
}
