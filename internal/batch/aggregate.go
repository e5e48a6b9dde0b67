package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/format"
	"scribe/internal/pipeline"
	"scribe/internal/review"
)

// writeArtifacts persists the run-level outputs: results.json, summary.md,
// and one deferred-issues file per unit that carries deferred issues.
func (r *Runner) writeArtifacts(report *Report) error {
	if err := writeResults(report.Dir, report.Results); err != nil {
		return err
	}
	if err := writeSummary(report.Dir, report); err != nil {
		return err
	}
	for _, res := range report.Results {
		if len(res.Deferred) == 0 {
			continue
		}
		if err := writeDeferred(report.Dir, res); err != nil {
			return err
		}
	}
	return nil
}

func writeResults(dir string, results []pipeline.OperationResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(dir, "results.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeSummary(dir string, report *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", report.ID)
	fmt.Fprintf(&b, "Started %s, %d/%d units succeeded.\n\n",
		report.Started.Format(time.RFC3339), report.Succeeded(), len(report.Results))
	b.WriteString(SummaryTable(format.Markdown, report.Results))
	b.WriteString("\n")

	path := filepath.Join(dir, "summary.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SummaryTable renders the per-unit outcome table in the requested mode.
// The CLI prints the ASCII form; summary.md embeds the Markdown form.
func SummaryTable(m format.Mode, results []pipeline.OperationResult) string {
	t := format.NewTable(m)
	t.Header("Unit", "Status", "Iterations", "Found", "Fixed", "Deferred", "Pull Request", "Duration")
	t.RightAlign(3, 4, 5, 6)

	var found, fixed, deferred int
	for _, res := range results {
		pr := res.PullRequest
		if pr == "" {
			pr = "-"
		}
		t.Row(res.Unit, statusCell(res), res.Iterations, res.IssuesFound, res.IssuesFixed,
			len(res.Deferred), pr, format.FmtDuration(res.Duration))
		found += res.IssuesFound
		fixed += res.IssuesFixed
		deferred += len(res.Deferred)
	}
	t.Footer("total", "", "", found, fixed, deferred, "", "")
	return t.String()
}

func statusCell(res pipeline.OperationResult) string {
	if res.Error != "" {
		return fmt.Sprintf("%s (%s)", res.Status, format.Truncate(res.Error, 60))
	}
	return string(res.Status)
}

// writeDeferred records a unit's accepted-within-policy issues, grouped from
// most to least severe, so a human can pick them up later.
func writeDeferred(dir string, res pipeline.OperationResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Deferred issues: %s\n", res.Label)
	for _, sev := range []review.Severity{review.SeverityCritical, review.SeverityMajor, review.SeverityMinor} {
		group := issuesWithSeverity(res.Deferred, sev)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", titleSeverity(sev))
		for _, is := range group {
			fmt.Fprintf(&b, "- **%s**", is.Description)
			if is.Target != "" {
				fmt.Fprintf(&b, " (`%s`)", is.Target)
			}
			b.WriteString("\n")
			if is.SuggestedFix != "" {
				fmt.Fprintf(&b, "  - Suggested fix: %s\n", is.SuggestedFix)
			}
		}
	}

	path := filepath.Join(dir, res.Unit+"-deferred.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func titleSeverity(sev review.Severity) string {
	s := string(sev)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func issuesWithSeverity(issues []review.Issue, sev review.Severity) []review.Issue {
	var out []review.Issue
	for _, is := range issues {
		if is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}
