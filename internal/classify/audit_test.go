package classify

import (
	"bytes"
	"encoding/json"
	"testing"
)

const auditFixture = `{
	"CreationTime": "2026-01-25T10:30:00Z",
	"UserId": "user@contoso.com",
	"AccessedResources": [
		{"Status": "failure"},
		{"Status": "success", "XPIADetected": true}
	],
	"Messages": [
		{"JailbreakDetected": false}
	]
}`

func TestAuditClassify_ContributesReasons(t *testing.T) {
	c := NewAuditClassifier()

	ev, err := c.Classify([]byte(auditFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected a deny event")
	}

	if !ev.Reasons.Has(ReasonResourceFailure) || !ev.Reasons.Has(ReasonXPIA) {
		t.Errorf("expected ResourceFailure and XPIA, got %v", ev.Reasons.Values())
	}
	if ev.Reasons.Has(ReasonJailbreak) {
		t.Error("jailbreak flag was false, Jailbreak must not be present")
	}
	if !ev.XPIADetected {
		t.Error("expected XPIADetected projection to be set")
	}
	if ev.SubjectID != "user@contoso.com" {
		t.Errorf("unexpected subject: %s", ev.SubjectID)
	}
	if !bytes.Equal(ev.Raw, []byte(auditFixture)) {
		t.Error("raw payload must be retained unmodified")
	}
}

func TestAuditClassify_NoIndicatorsDiscards(t *testing.T) {
	raw := []byte(`{
		"CreationTime": "2026-01-25T10:30:00Z",
		"UserId": "user@contoso.com",
		"AccessedResources": [{"Status": "success"}],
		"Messages": [{"JailbreakDetected": false}]
	}`)

	ev, err := NewAuditClassifier().Classify(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected discard, got event with reasons %v", ev.Reasons.Values())
	}
}

func TestAuditClassify_NeverEmitsEmptyReasons(t *testing.T) {
	// Every emitted event must carry at least one reason code, across a
	// mix of indicator combinations.
	cases := []string{
		`{"CreationTime":"2026-01-25T00:00:00Z","UserId":"u","AccessedResources":[{"Status":"failure"}]}`,
		`{"CreationTime":"2026-01-25T00:00:00Z","UserId":"u","AccessedResources":[{"XPIADetected":true}]}`,
		`{"CreationTime":"2026-01-25T00:00:00Z","UserId":"u","Messages":[{"JailbreakDetected":true}]}`,
		`{"CreationTime":"2026-01-25T00:00:00Z","UserId":"u","AccessedResources":[{"Status":"success"}]}`,
		`{"CreationTime":"2026-01-25T00:00:00Z","UserId":"u"}`,
	}

	c := NewAuditClassifier()
	for _, raw := range cases {
		ev, err := c.Classify([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
		if ev != nil && ev.Reasons.Len() == 0 {
			t.Errorf("emitted event with empty reasons for %s", raw)
		}
	}
}

func TestAuditClassify_DeduplicatesPolicyNames(t *testing.T) {
	raw := []byte(`{
		"CreationTime": "2026-01-25T10:30:00Z",
		"UserId": "user@contoso.com",
		"AccessedResources": [
			{"Status": "success", "PolicyDetails": [{"PolicyName": "Sensitive Data"}]},
			{"Status": "success", "PolicyDetails": [{"PolicyName": "Sensitive Data"}]}
		]
	}`)

	ev, err := NewAuditClassifier().Classify(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected a deny event")
	}

	if got := ev.Policies.Values(); len(got) != 1 || got[0] != "Sensitive Data" {
		t.Errorf("expected policy name exactly once, got %v", got)
	}
	if got := ev.Reasons.Values(); len(got) != 1 || got[0] != ReasonPolicyBlock {
		t.Errorf("expected single PolicyBlock reason, got %v", got)
	}
	if !ev.PolicyBlocked {
		t.Error("expected PolicyBlocked projection to be set")
	}
}

func TestAuditClassify_MalformedRecord(t *testing.T) {
	c := NewAuditClassifier()

	if _, err := c.Classify([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := c.Classify([]byte(`{"UserId":"u"}`)); err == nil {
		t.Error("expected error for missing CreationTime")
	}
	if _, err := c.Classify([]byte(`{"CreationTime":"2026-01-25T00:00:00Z"}`)); err == nil {
		t.Error("expected error for missing UserId")
	}
}

func TestAuditClassify_Idempotent(t *testing.T) {
	c := NewAuditClassifier()

	first, err := c.Classify([]byte(auditFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Classify([]byte(auditFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(first.Reasons.Values())
	b, _ := json.Marshal(second.Reasons.Values())
	if !bytes.Equal(a, b) {
		t.Errorf("classification is not idempotent: %s vs %s", a, b)
	}
	if first.SubjectID != second.SubjectID || !first.Timestamp.Equal(second.Timestamp) {
		t.Error("classification is not idempotent on identity fields")
	}
}
