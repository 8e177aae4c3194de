package source

import "fmt"

// Kind identifies one of the configured deny-event sources.
type Kind int

const (
	KindUnspecified Kind = iota
	KindInteractionAudit
	KindDlpRuleMatch
	KindContentFilterTelemetry
)

// String returns the lowercase kind name used in config, logs, and filenames.
func (k Kind) String() string {
	switch k {
	case KindInteractionAudit:
		return "interaction_audit"
	case KindDlpRuleMatch:
		return "dlp_rule_match"
	case KindContentFilterTelemetry:
		return "content_filter_telemetry"
	default:
		return "unspecified"
	}
}

// AllKinds lists every supported source in the fixed run order.
func AllKinds() []Kind {
	return []Kind{KindInteractionAudit, KindDlpRuleMatch, KindContentFilterTelemetry}
}

// ParseKind converts a config/CLI name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "interaction_audit", "audit":
		return KindInteractionAudit, nil
	case "dlp_rule_match", "dlp":
		return KindDlpRuleMatch, nil
	case "content_filter_telemetry", "telemetry":
		return KindContentFilterTelemetry, nil
	default:
		return KindUnspecified, fmt.Errorf("unknown source kind %q", s)
	}
}
