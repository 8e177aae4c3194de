package sink

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/source"
)

func sampleEvent() *classify.DenyEvent {
	return &classify.DenyEvent{
		Timestamp: time.Date(2026, 1, 25, 10, 30, 0, 0, time.UTC),
		SubjectID: "user@contoso.com",
		Source:    source.KindInteractionAudit,
		Reasons:   classify.NewSet(classify.ReasonPolicyBlock, classify.ReasonXPIA),
		Policies:  classify.NewSet("Sensitive Data"),
		Severity:  classify.SeverityHigh,
		Raw:       []byte(`{"UserId":"user@contoso.com"}`),
	}
}

func TestCSVSink_WritesRows(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, "2026-01-25", zap.NewNop())

	path, err := s.Write(context.Background(), source.KindInteractionAudit, []*classify.DenyEvent{sampleEvent()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("output not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}

	row := rows[1]
	if row[0] != "2026-01-25T10:30:00Z" {
		t.Errorf("unexpected timestamp column: %q", row[0])
	}
	if row[3] != "PolicyBlock;XPIA" {
		t.Errorf("reason codes not joined at sink boundary: %q", row[3])
	}
	if row[4] != "Sensitive Data" {
		t.Errorf("unexpected policy column: %q", row[4])
	}
	if row[5] != "high" {
		t.Errorf("unexpected severity column: %q", row[5])
	}
	if row[6] != "false" {
		t.Errorf("unexpected override column: %q", row[6])
	}
	if row[7] != `{"UserId":"user@contoso.com"}` {
		t.Errorf("raw payload not retained: %q", row[7])
	}
}

func TestCSVSink_EmptyExportWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, "2026-01-25", zap.NewNop())

	path, err := s.Write(context.Background(), source.KindDlpRuleMatch, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("output not valid CSV: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header-only file, got %d rows", len(rows))
	}
}

func TestLogSink_ReturnsLocation(t *testing.T) {
	s := NewLogSink(zap.NewNop())
	loc, err := s.Write(context.Background(), source.KindContentFilterTelemetry, []*classify.DenyEvent{sampleEvent()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != "log://content_filter_telemetry" {
		t.Errorf("unexpected location: %q", loc)
	}
}
