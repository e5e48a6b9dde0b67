// Package review turns agent and test output into severity-tagged issues and
// decides whether a unit's issue list is acceptable.
package review

import (
	"fmt"
	"strings"

	"scribe/internal/testrun"
)

// Severity grades an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// ParseSeverity maps free-form severity strings to the fixed vocabulary.
// Unknown values degrade to minor, consistent with the fail-open posture for
// malformed review output.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityMajor:
		return SeverityMajor
	case SeverityMinor:
		return SeverityMinor
	default:
		return SeverityMinor
	}
}

// Issue is one immutable finding from a test failure or an automated review.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category,omitempty"`
	Target      string   `json:"target,omitempty"` // file or area locator
	Description string   `json:"description"`
	SuggestedFix string  `json:"suggested_fix,omitempty"`
}

// CountBySeverity tallies an issue list.
func CountBySeverity(issues []Issue) (critical, major, minor int) {
	for _, is := range issues {
		switch is.Severity {
		case SeverityCritical:
			critical++
		case SeverityMajor:
			major++
		default:
			minor++
		}
	}
	return critical, major, minor
}

// FromTestFailures converts each failed target into exactly one critical
// issue whose description embeds the captured error and output.
func FromTestFailures(report testrun.Report) []Issue {
	var issues []Issue
	for _, tr := range report.Targets {
		if tr.Passed {
			continue
		}
		desc := fmt.Sprintf("tests failed for target %q: %s", tr.Target, tr.Error)
		if out := strings.TrimSpace(tr.Output); out != "" {
			desc += "\n\nOutput:\n" + out
		}
		issues = append(issues, Issue{
			Severity:    SeverityCritical,
			Category:    "test-failure",
			Target:      tr.Target,
			Description: desc,
		})
	}
	return issues
}
