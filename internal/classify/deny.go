package classify

import (
	"strings"
	"time"

	"github.com/triage-ai/denywatch/internal/source"
)

// Severity is the ordinal ranking attached to policy or filter matches.
// SeverityNone means the source carried no severity at all.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// String returns the lowercase severity name, or "" for SeverityNone.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return ""
	}
}

// severityFromString maps a source-provided severity label to its ordinal.
// Unknown labels map to SeverityNone.
func severityFromString(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	default:
		return SeverityNone
	}
}

// Reason codes contributed by the interaction-audit classifier.
const (
	ReasonResourceFailure = "ResourceFailure"
	ReasonPolicyBlock     = "PolicyBlock"
	ReasonXPIA            = "XPIA"
	ReasonJailbreak       = "Jailbreak"
)

// Correlation carries the agent/session/turn identifiers a telemetry
// record ships with. Cross-source correlation happens downstream; the
// pipeline only preserves the IDs.
type Correlation struct {
	AgentID   string
	SessionID string
	TurnID    string
}

// DenyEvent is the normalized unit of output: one instance of a principal's
// action being blocked, flagged, or filtered.
//
// Invariant: Reasons is never empty. A raw record with zero matching deny
// indicators is discarded by its classifier, never emitted.
type DenyEvent struct {
	Timestamp time.Time
	SubjectID string
	Source    source.Kind
	Reasons   *Set
	Policies  *Set
	Severity  Severity

	// OverrideUsed is true when the subject bypassed a block with a
	// justification; Justification holds the text when present.
	OverrideUsed  bool
	Justification string

	// Derived projections from the audit classifier.
	XPIADetected      bool
	JailbreakDetected bool
	PolicyBlocked     bool

	Correlation Correlation

	// Raw is the original record, retained for audit traceability.
	Raw source.RawRecord
}

// Classifier maps one raw source record to a normalized DenyEvent.
//
// Classify returns (nil, nil) when the record carries no actionable deny
// signal (discard), and a non-nil error when the record is malformed. A
// malformed record is skipped with a warning by the caller; it never aborts
// a run. Implementations are pure with respect to their input.
type Classifier interface {
	Source() source.Kind
	Classify(raw source.RawRecord) (*DenyEvent, error)
}
