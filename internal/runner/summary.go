package runner

import (
	"fmt"
	"strings"
	"time"
)

// Render formats the human-readable run summary. Warnings (truncation,
// skipped records, failures) are always included, even on overall success.
func (s *Summary) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Deny-event extraction run %s\n", s.RunID)
	fmt.Fprintf(&b, "Window: %s to %s\n\n",
		s.Start.UTC().Format("2006-01-02T15:04:05Z"),
		s.End.UTC().Format("2006-01-02T15:04:05Z"),
	)

	for _, r := range s.Results {
		if r.Succeeded {
			fmt.Fprintf(&b, "  %-26s OK      %6d events  (%d raw, %s)\n",
				r.Source, r.EventCount, r.RawCount, r.Duration.Round(time.Millisecond))
			if r.OutputLocation != "" {
				fmt.Fprintf(&b, "  %-26s         -> %s\n", "", r.OutputLocation)
			}
		} else {
			fmt.Fprintf(&b, "  %-26s FAILED  %v\n", r.Source, r.Err)
		}
		if r.Truncated {
			fmt.Fprintf(&b, "  %-26s WARNING results truncated at record cap; window is incomplete\n", "")
		}
		if r.Skipped > 0 {
			fmt.Fprintf(&b, "  %-26s WARNING %d malformed record(s) skipped\n", "", r.Skipped)
		}
	}

	fmt.Fprintf(&b, "\nTotal events: %d\n", s.TotalEvents)
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	if s.Status == StatusPartialFailure {
		b.WriteString("WARNING: at least one source failed; exported data is incomplete\n")
	}
	return b.String()
}
