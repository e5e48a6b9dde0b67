package pipeline

import (
	"time"

	"scribe/internal/review"
)

// Status is the terminal state of a unit's pipeline.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExhausted Status = "exhausted"
)

// OK reports whether the status counts as success for remote integration.
func (s Status) OK() bool { return s == StatusSucceeded }

// OperationResult is the immutable per-unit outcome, the only artifact the
// aggregator and remote integration consume.
type OperationResult struct {
	Unit        string         `json:"unit"`
	Label       string         `json:"label"`
	Branch      string         `json:"branch,omitempty"`
	Status      Status         `json:"status"`
	Iterations  int            `json:"iterations"`
	IssuesFound int            `json:"issues_found"`
	IssuesFixed int            `json:"issues_fixed"`
	Deferred    []review.Issue `json:"deferred,omitempty"`
	PullRequest string         `json:"pull_request,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration_ns"`
}
