package classify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/triage-ai/denywatch/internal/source"
)

type telemetryRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"userId"`
	FilterCategory string    `json:"filterCategory"`
	FilterSeverity string    `json:"filterSeverity"`
	AgentID        string    `json:"agentId"`
	SessionID      string    `json:"sessionId"`
	TurnID         string    `json:"turnId"`
}

// TelemetryClassifier normalizes content-filter telemetry records. The
// query that feeds it already selects filtering events, so there is no
// signal-based discard branch — only malformed records are rejected.
type TelemetryClassifier struct{}

func NewTelemetryClassifier() *TelemetryClassifier {
	return &TelemetryClassifier{}
}

func (c *TelemetryClassifier) Source() source.Kind {
	return source.KindContentFilterTelemetry
}

// Classify emits a single-reason DenyEvent carrying the filter category and
// the agent/session/turn correlation IDs. Records missing required
// correlation fields are malformed.
func (c *TelemetryClassifier) Classify(raw source.RawRecord) (*DenyEvent, error) {
	var rec telemetryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("telemetry record: %w", err)
	}
	if rec.UserID == "" || rec.Timestamp.IsZero() {
		return nil, fmt.Errorf("telemetry record: missing userId or timestamp")
	}
	if rec.FilterCategory == "" {
		return nil, fmt.Errorf("telemetry record: missing filterCategory")
	}
	if rec.AgentID == "" || rec.SessionID == "" {
		return nil, fmt.Errorf("telemetry record: missing correlation fields")
	}

	return &DenyEvent{
		Timestamp: rec.Timestamp,
		SubjectID: rec.UserID,
		Source:    source.KindContentFilterTelemetry,
		Reasons:   NewSet(rec.FilterCategory),
		Policies:  NewSet(),
		Severity:  severityFromString(rec.FilterSeverity),
		Correlation: Correlation{
			AgentID:   rec.AgentID,
			SessionID: rec.SessionID,
			TurnID:    rec.TurnID,
		},
		Raw: raw,
	}, nil
}
