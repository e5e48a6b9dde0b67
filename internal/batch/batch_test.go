package batch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/format"
	"scribe/internal/gitx"
	"scribe/internal/mode"
	"scribe/internal/pipeline"
	"scribe/internal/provider"
	"scribe/internal/review"
)

// stubPipeline returns a canned result per unit slug.
type stubPipeline struct {
	mu      sync.Mutex
	results map[string]pipeline.OperationResult
	inUse   int
	maxSeen int
	delay   time.Duration
}

func (s *stubPipeline) Run(_ context.Context, cfg provider.Config, ws *gitx.Workspace) pipeline.OperationResult {
	s.mu.Lock()
	s.inUse++
	if s.inUse > s.maxSeen {
		s.maxSeen = s.inUse
	}
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.inUse--
	res, ok := s.results[cfg.Slug()]
	s.mu.Unlock()
	if !ok {
		res = pipeline.OperationResult{Unit: cfg.Slug(), Label: cfg.DisplayLabel(), Status: pipeline.StatusSucceeded, Iterations: 1}
	}
	res.Branch = ws.Branch
	return res
}

type stubPublisher struct {
	mu    sync.Mutex
	calls []string
	url   string
	err   error
}

func (p *stubPublisher) Publish(_ context.Context, ws *gitx.Workspace, _ pipeline.OperationResult) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, ws.Unit)
	p.mu.Unlock()
	return p.url, p.err
}

// scriptedGit answers git invocations by command prefix; used only by the
// live-mode isolation-failure test.
type scriptedGit struct {
	failures map[string]error
}

func (g *scriptedGit) Run(_ context.Context, _ string, args ...string) (string, error) {
	cmd := strings.Join(args, " ")
	for prefix, err := range g.failures {
		if strings.HasPrefix(cmd, prefix) {
			return "", err
		}
	}
	return "", nil
}

func units(names ...string) []provider.Config {
	out := make([]provider.Config, len(names))
	for i, n := range names {
		out[i] = provider.Config{Name: n}
	}
	return out
}

func newTestRunner(t *testing.T, stub *stubPipeline, pub Publisher, parallel int) (*Runner, string) {
	t.Helper()
	worktrees := filepath.Join(t.TempDir(), "worktrees")
	mgr := gitx.NewManager(gitx.ManagerConfig{
		RepoDir:      t.TempDir(),
		WorktreesDir: worktrees,
		Runner:       &scriptedGit{},
		Mode:         mode.DryRun,
	})
	r := New(Config{
		Git:       mgr,
		Pipeline:  func(*slog.Logger) UnitRunner { return stub },
		Publisher: pub,
		Parallel:  parallel,
		RunsDir:   t.TempDir(),
	})
	return r, worktrees
}

func TestExecute_ResultsInSelectionOrder(t *testing.T) {
	stub := &stubPipeline{results: map[string]pipeline.OperationResult{}}
	r, _ := newTestRunner(t, stub, nil, 2)

	report, err := r.Execute(context.Background(), units("stripe", "twilio", "sendgrid"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"stripe", "twilio", "sendgrid"}
	for i, res := range report.Results {
		if res.Unit != want[i] {
			t.Errorf("Results[%d].Unit = %q, want %q", i, res.Unit, want[i])
		}
		if res.Branch != "scribe/"+want[i] {
			t.Errorf("Results[%d].Branch = %q", i, res.Branch)
		}
	}
	if report.Succeeded() != 3 || report.Failed() {
		t.Errorf("Succeeded = %d, Failed = %v", report.Succeeded(), report.Failed())
	}
}

func TestExecute_BoundsParallelism(t *testing.T) {
	stub := &stubPipeline{delay: 30 * time.Millisecond}
	r, _ := newTestRunner(t, stub, nil, 2)

	if _, err := r.Execute(context.Background(), units("a", "b", "c", "d", "e", "f")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if stub.maxSeen > 2 {
		t.Errorf("max concurrent pipelines = %d, want <= 2", stub.maxSeen)
	}
}

func TestExecute_IsolationFailureDoesNotAbortBatch(t *testing.T) {
	stub := &stubPipeline{}
	worktrees := filepath.Join(t.TempDir(), "worktrees")
	mgr := gitx.NewManager(gitx.ManagerConfig{
		RepoDir:      t.TempDir(),
		WorktreesDir: worktrees,
		Runner:       &scriptedGit{failures: map[string]error{"ls-remote --heads origin scribe/twilio": errors.New("boom"), "worktree add -b scribe/twilio": errors.New("locked")}},
		Mode:         mode.Live,
	})
	r := New(Config{
		Git:      mgr,
		Pipeline: func(*slog.Logger) UnitRunner { return stub },
		RunsDir:  t.TempDir(),
	})

	report, err := r.Execute(context.Background(), units("stripe", "twilio", "sendgrid"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := report.Results[1]; got.Status != pipeline.StatusFailed || !strings.Contains(got.Error, "workspace") {
		t.Errorf("Results[1] = %+v, want workspace failure", got)
	}
	if report.Results[0].Status != pipeline.StatusSucceeded || report.Results[2].Status != pipeline.StatusSucceeded {
		t.Error("healthy units must still run")
	}
	if report.Succeeded() != 2 {
		t.Errorf("Succeeded = %d", report.Succeeded())
	}
}

func TestExecute_FailedUnitWorkspaceRemoved(t *testing.T) {
	stub := &stubPipeline{results: map[string]pipeline.OperationResult{
		"stripe": {Unit: "stripe", Status: pipeline.StatusFailed, Error: "agent died"},
	}}
	r, worktrees := newTestRunner(t, stub, nil, 1)

	if _, err := r.Execute(context.Background(), units("stripe")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(worktrees, "stripe")); !os.IsNotExist(err) {
		t.Error("failed unit's workspace must be removed")
	}
}

func TestExecute_SuccessWithoutPublisherKeepsWorkspace(t *testing.T) {
	stub := &stubPipeline{}
	r, worktrees := newTestRunner(t, stub, nil, 1)

	if _, err := r.Execute(context.Background(), units("stripe")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(worktrees, "stripe")); err != nil {
		t.Error("successful unit's workspace must be kept when integration is off")
	}
}

func TestExecute_PublishedUnitWorkspaceRemoved(t *testing.T) {
	stub := &stubPipeline{}
	pub := &stubPublisher{url: "https://github.com/acme/docs/pull/3"}
	r, worktrees := newTestRunner(t, stub, pub, 1)

	report, err := r.Execute(context.Background(), units("stripe"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Results[0].PullRequest != pub.url {
		t.Errorf("PullRequest = %q", report.Results[0].PullRequest)
	}
	if len(pub.calls) != 1 || pub.calls[0] != "stripe" {
		t.Errorf("publisher calls = %v", pub.calls)
	}
	if _, err := os.Stat(filepath.Join(worktrees, "stripe")); !os.IsNotExist(err) {
		t.Error("published unit's workspace must be removed")
	}
}

func TestExecute_PublishFailureKeepsWorkspaceAndNotes(t *testing.T) {
	stub := &stubPipeline{}
	pub := &stubPublisher{err: errors.New("remote rejected")}
	r, worktrees := newTestRunner(t, stub, pub, 1)

	report, err := r.Execute(context.Background(), units("stripe"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := report.Results[0]
	if res.Status != pipeline.StatusSucceeded {
		t.Errorf("Status = %q, a publish failure must not demote the pipeline outcome", res.Status)
	}
	if !strings.Contains(res.Error, "publish") {
		t.Errorf("Error = %q, want publish note", res.Error)
	}
	if _, err := os.Stat(filepath.Join(worktrees, "stripe")); err != nil {
		t.Error("workspace must be kept when the push/PR step fails")
	}
}

func TestExecute_WritesRunArtifacts(t *testing.T) {
	stub := &stubPipeline{results: map[string]pipeline.OperationResult{
		"stripe": {
			Unit: "stripe", Label: "Stripe", Status: pipeline.StatusSucceeded, Iterations: 2,
			Deferred: []review.Issue{
				{Severity: review.SeverityMajor, Description: "retry guidance missing", Target: "docs/retries.md", SuggestedFix: "document backoff"},
				{Severity: review.SeverityMinor, Description: "typo in header"},
			},
		},
	}}
	r, _ := newTestRunner(t, stub, nil, 1)

	report, err := r.Execute(context.Background(), units("stripe", "twilio"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(report.Dir, "results.json"))
	if err != nil {
		t.Fatalf("results.json: %v", err)
	}
	if !strings.Contains(string(data), `"unit": "stripe"`) || !strings.Contains(string(data), `"unit": "twilio"`) {
		t.Error("results.json must carry every unit")
	}

	summary, err := os.ReadFile(filepath.Join(report.Dir, "summary.md"))
	if err != nil {
		t.Fatalf("summary.md: %v", err)
	}
	for _, want := range []string{"| Unit", "stripe", "twilio", "succeeded"} {
		if !strings.Contains(string(summary), want) {
			t.Errorf("summary.md missing %q", want)
		}
	}

	deferred, err := os.ReadFile(filepath.Join(report.Dir, "stripe-deferred.md"))
	if err != nil {
		t.Fatalf("stripe-deferred.md: %v", err)
	}
	for _, want := range []string{"## Major", "## Minor", "retry guidance missing", "document backoff"} {
		if !strings.Contains(string(deferred), want) {
			t.Errorf("deferred file missing %q", want)
		}
	}
	if _, err := os.Stat(filepath.Join(report.Dir, "twilio-deferred.md")); !os.IsNotExist(err) {
		t.Error("unit without deferred issues must not get a deferred file")
	}

	for _, slug := range []string{"stripe", "twilio"} {
		if _, err := os.Stat(filepath.Join(report.Dir, slug+".log")); err != nil {
			t.Errorf("missing per-unit log for %s: %v", slug, err)
		}
	}
}

func TestSummaryTable_Totals(t *testing.T) {
	results := []pipeline.OperationResult{
		{Unit: "stripe", Status: pipeline.StatusSucceeded, Iterations: 1, IssuesFound: 2, IssuesFixed: 2},
		{Unit: "twilio", Status: pipeline.StatusExhausted, Iterations: 3, IssuesFound: 4, IssuesFixed: 1,
			Deferred: []review.Issue{{Severity: review.SeverityMinor, Description: "x"}}},
	}
	out := SummaryTable(format.ASCII, results)
	for _, want := range []string{"stripe", "twilio", "TOTAL", "6", "3"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
