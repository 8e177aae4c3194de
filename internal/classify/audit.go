package classify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/triage-ai/denywatch/internal/source"
)

// auditRecord is the parsed shape of an interaction-audit record. Fields
// not inspected by the rules stay in the retained raw payload.
type auditRecord struct {
	CreationTime      time.Time       `json:"CreationTime"`
	UserID            string          `json:"UserId"`
	AccessedResources []auditResource `json:"AccessedResources"`
	Messages          []auditMessage  `json:"Messages"`
}

type auditResource struct {
	Status        string              `json:"Status"`
	PolicyDetails []auditPolicyDetail `json:"PolicyDetails"`
	XPIADetected  bool                `json:"XPIADetected"`
}

type auditPolicyDetail struct {
	PolicyName string `json:"PolicyName"`
}

type auditMessage struct {
	JailbreakDetected bool `json:"JailbreakDetected"`
}

// AuditClassifier inspects accessed-resource and message sub-records of an
// interaction-audit record for deny indicators.
type AuditClassifier struct{}

func NewAuditClassifier() *AuditClassifier {
	return &AuditClassifier{}
}

func (c *AuditClassifier) Source() source.Kind {
	return source.KindInteractionAudit
}

// Classify applies the audit rule set:
//   - accessed resource with Status "failure"        → ResourceFailure
//   - accessed resource with policy-detail metadata  → PolicyBlock (+ name)
//   - accessed resource with the XPIA flag           → XPIA
//   - message with the jailbreak-detection flag      → Jailbreak
//
// A record contributing no reason codes is discarded.
func (c *AuditClassifier) Classify(raw source.RawRecord) (*DenyEvent, error) {
	var rec auditRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("audit record: %w", err)
	}
	if rec.UserID == "" || rec.CreationTime.IsZero() {
		return nil, fmt.Errorf("audit record: missing UserId or CreationTime")
	}

	reasons := NewSet()
	policies := NewSet()
	var xpia, jailbreak, policyBlocked bool

	for _, res := range rec.AccessedResources {
		if res.Status == "failure" {
			reasons.Add(ReasonResourceFailure)
		}
		if len(res.PolicyDetails) > 0 {
			reasons.Add(ReasonPolicyBlock)
			policyBlocked = true
			for _, pd := range res.PolicyDetails {
				policies.Add(pd.PolicyName)
			}
		}
		if res.XPIADetected {
			reasons.Add(ReasonXPIA)
			xpia = true
		}
	}
	for _, msg := range rec.Messages {
		if msg.JailbreakDetected {
			reasons.Add(ReasonJailbreak)
			jailbreak = true
		}
	}

	if reasons.Len() == 0 {
		return nil, nil
	}

	return &DenyEvent{
		Timestamp:         rec.CreationTime,
		SubjectID:         rec.UserID,
		Source:            source.KindInteractionAudit,
		Reasons:           reasons,
		Policies:          policies,
		XPIADetected:      xpia,
		JailbreakDetected: jailbreak,
		PolicyBlocked:     policyBlocked,
		Raw:               raw,
	}, nil
}
