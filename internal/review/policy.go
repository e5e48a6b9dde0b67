package review

import "fmt"

// Verdict is the acceptance decision for an issue list.
type Verdict int

const (
	// Accepted: no issues remain, or the reviewer explicitly approved.
	Accepted Verdict = iota
	// AcceptedWithinPolicy: issues remain but every threshold holds; they are
	// recorded as deferred issues.
	AcceptedWithinPolicy
	// Rejected: at least one threshold is exceeded; drives the fix loop.
	Rejected
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case AcceptedWithinPolicy:
		return "accepted-within-policy"
	default:
		return "rejected"
	}
}

// Policy holds the fixed acceptance thresholds. Construct explicitly and pass
// by value; tests build alternates instead of mutating globals.
type Policy struct {
	MaxCritical int
	MaxMajor    int
	MaxMinor    int
	MaxTotal    int
}

// DefaultPolicy returns the production thresholds: no criticals, at most one
// major, two minors, five total.
func DefaultPolicy() Policy {
	return Policy{MaxCritical: 0, MaxMajor: 1, MaxMinor: 2, MaxTotal: 5}
}

// Evaluate decides the verdict for an issue list. approved reflects an
// explicit reviewer approval, which accepts regardless of leftover notes.
func (p Policy) Evaluate(issues []Issue, approved bool) Verdict {
	if approved || len(issues) == 0 {
		return Accepted
	}
	critical, major, minor := CountBySeverity(issues)
	total := len(issues)
	if critical > p.MaxCritical || major > p.MaxMajor || minor > p.MaxMinor || total > p.MaxTotal {
		return Rejected
	}
	return AcceptedWithinPolicy
}

// Describe renders the thresholds for logs and reports.
func (p Policy) Describe() string {
	return fmt.Sprintf("critical<=%d major<=%d minor<=%d total<=%d", p.MaxCritical, p.MaxMajor, p.MaxMinor, p.MaxTotal)
}
