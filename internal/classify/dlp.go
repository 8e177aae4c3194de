package classify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/triage-ai/denywatch/internal/source"
)

// SurfaceMarker tags DLP activity on the assistant surface. A record is
// relevant when its workload or any policy name contains this marker, or
// when an explicit policy filter matches.
const SurfaceMarker = "Copilot"

type dlpRecord struct {
	CreationTime  time.Time     `json:"CreationTime"`
	UserID        string        `json:"UserId"`
	Workload      string        `json:"Workload"`
	PolicyDetails []dlpPolicy   `json:"PolicyDetails"`
	ExceptionInfo *dlpException `json:"ExceptionInfo"`
}

type dlpPolicy struct {
	PolicyName string    `json:"PolicyName"`
	Rules      []dlpRule `json:"Rules"`
}

type dlpRule struct {
	RuleName string   `json:"RuleName"`
	Actions  []string `json:"Actions"`
	Severity string   `json:"Severity"`
}

type dlpException struct {
	Justification string `json:"Justification"`
}

// DlpClassifier filters DLP rule-match records to the assistant surface and
// aggregates rule names, actions, and severities.
//
// PolicyFilter is an optional wildcard pattern ('*' matches any run of
// characters) applied to policy names. When empty, only the surface-marker
// check decides relevance — tenants whose policies are not tagged with the
// marker are silently skipped.
type DlpClassifier struct {
	PolicyFilter string
}

func NewDlpClassifier(policyFilter string) *DlpClassifier {
	return &DlpClassifier{PolicyFilter: policyFilter}
}

func (c *DlpClassifier) Source() source.Kind {
	return source.KindDlpRuleMatch
}

// Classify discards records not relevant to the assistant surface. For a
// relevant record it emits one DenyEvent with:
//   - Reasons  = deduplicated rule actions (e.g. Block, Warn)
//   - Policies = deduplicated policy and rule names
//   - Severity = maximum rule severity (Low < Medium < High)
//   - OverrideUsed/Justification from a non-empty exception
func (c *DlpClassifier) Classify(raw source.RawRecord) (*DenyEvent, error) {
	var rec dlpRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("dlp record: %w", err)
	}
	if rec.UserID == "" || rec.CreationTime.IsZero() {
		return nil, fmt.Errorf("dlp record: missing UserId or CreationTime")
	}

	if !c.relevant(&rec) {
		return nil, nil
	}

	reasons := NewSet()
	policies := NewSet()
	maxSeverity := SeverityNone

	for _, p := range rec.PolicyDetails {
		policies.Add(p.PolicyName)
		for _, r := range p.Rules {
			policies.Add(r.RuleName)
			for _, a := range r.Actions {
				reasons.Add(a)
			}
			if s := severityFromString(r.Severity); s > maxSeverity {
				maxSeverity = s
			}
		}
	}

	// A matched record with no rule actions carries no deny indicator.
	if reasons.Len() == 0 {
		return nil, nil
	}

	ev := &DenyEvent{
		Timestamp: rec.CreationTime,
		SubjectID: rec.UserID,
		Source:    source.KindDlpRuleMatch,
		Reasons:   reasons,
		Policies:  policies,
		Severity:  maxSeverity,
		Raw:       raw,
	}
	if rec.ExceptionInfo != nil && strings.TrimSpace(rec.ExceptionInfo.Justification) != "" {
		ev.OverrideUsed = true
		ev.Justification = rec.ExceptionInfo.Justification
	}
	return ev, nil
}

// relevant decides whether the record concerns the assistant surface.
func (c *DlpClassifier) relevant(rec *dlpRecord) bool {
	if strings.Contains(rec.Workload, SurfaceMarker) {
		return true
	}
	for _, p := range rec.PolicyDetails {
		if strings.Contains(p.PolicyName, SurfaceMarker) {
			return true
		}
		if c.PolicyFilter != "" && matchWildcard(c.PolicyFilter, p.PolicyName) {
			return true
		}
	}
	return false
}

// matchWildcard reports whether name matches pattern, where '*' matches any
// (possibly empty) run of characters. Matching is case-insensitive.
func matchWildcard(pattern, name string) bool {
	pattern = strings.ToLower(pattern)
	name = strings.ToLower(name)

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}

	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(name, last) {
		return false
	}
	name = name[:len(name)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(name, part)
		if idx < 0 {
			return false
		}
		name = name[idx+len(part):]
	}
	return true
}
