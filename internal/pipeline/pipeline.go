// Package pipeline is the per-unit iteration state machine: generate, then
// test → review → fix in a bounded loop until the issue list is acceptable or
// the iteration budget runs out.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"scribe/internal/agent"
	"scribe/internal/gitx"
	"scribe/internal/logging"
	"scribe/internal/prompt"
	"scribe/internal/provider"
	"scribe/internal/review"
	"scribe/internal/testrun"
)

// Phase names used in state transitions and logs.
type Phase string

const (
	PhaseGenerating Phase = "generating"
	PhaseTesting    Phase = "testing"
	PhaseReviewing  Phase = "reviewing"
	PhaseFixing     Phase = "fixing"
)

// Agent abstracts the AI agent invoker for the orchestrator.
type Agent interface {
	Invoke(ctx context.Context, prompt, workDir string) agent.Result
}

// Tester abstracts the test runner adapter.
type Tester interface {
	Run(ctx context.Context, artifactRoot string) testrun.Report
}

// Config configures one orchestrator, shared across units of a run.
type Config struct {
	Agent         Agent
	Tester        Tester
	Policy        review.Policy
	MaxIterations int  // fix-invocation budget; default 3
	Generate      bool // run the initial generation phase
	Tests         bool // run the testing phase
	Review        bool // run the reviewing phase
	Logger        *slog.Logger
}

// DefaultConfig returns a config with all phases enabled and the default
// policy. Agent and Tester must still be supplied.
func DefaultConfig() Config {
	return Config{
		Policy:        review.DefaultPolicy(),
		MaxIterations: 3,
		Generate:      true,
		Tests:         true,
		Review:        true,
	}
}

// Orchestrator drives the state machine for single units. It is stateless
// across Run calls; all mutable state lives in the per-call run record.
type Orchestrator struct {
	cfg Config
	log *slog.Logger
}

// New builds an Orchestrator with defaults applied.
func New(cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Orchestrator{cfg: cfg, log: cfg.Logger}
}

// run is the mutable per-unit state, finalized into an OperationResult.
type run struct {
	iteration   int
	issuesFound int
	issuesFixed int
	deferred    []review.Issue
	lastIssues  []review.Issue
}

// Run executes the full pipeline for one unit inside its workspace and
// returns the immutable result. Failures are local: Run never panics and
// never returns an error that should stop other units.
func (o *Orchestrator) Run(ctx context.Context, cfg provider.Config, ws *gitx.Workspace) OperationResult {
	log := o.log.With("unit", cfg.Slug())
	started := time.Now()
	artifactRoot := filepath.Join(ws.Path, cfg.ArtifactDir())

	st := &run{iteration: 1}

	finalize := func(status Status, err error) OperationResult {
		res := OperationResult{
			Unit:        cfg.Slug(),
			Label:       cfg.DisplayLabel(),
			Branch:      ws.Branch,
			Status:      status,
			Iterations:  st.iteration,
			IssuesFound: st.issuesFound,
			IssuesFixed: st.issuesFixed,
			Deferred:    st.deferred,
			Duration:    time.Since(started),
		}
		if err != nil {
			res.Error = err.Error()
		}
		log.Info("pipeline finished", "status", status, "iterations", res.Iterations,
			"found", res.IssuesFound, "fixed", res.IssuesFixed, "deferred", len(res.Deferred))
		return res
	}

	if o.cfg.Generate {
		log.Info("phase start", "phase", PhaseGenerating, "iteration", st.iteration)
		p, err := prompt.Generation(cfg)
		if err != nil {
			return finalize(StatusFailed, err)
		}
		if res := o.cfg.Agent.Invoke(ctx, p, ws.Path); !res.Succeeded {
			// A failed generation is a failed phase, not a hard abort: the
			// loop's tests will surface what is missing as critical issues.
			log.Warn("generation invocation failed", "error", res.Err)
		}
	}

	for st.iteration <= o.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return finalize(StatusFailed, err)
		}

		// Testing. A failing target loops straight back through fix; the
		// pipeline never advances to review on a test failure.
		if o.cfg.Tests {
			log.Info("phase start", "phase", PhaseTesting, "iteration", st.iteration)
			report := o.cfg.Tester.Run(ctx, artifactRoot)
			if !report.Passed {
				issues := review.FromTestFailures(report)
				st.recordFound(issues)
				o.fix(ctx, log, cfg, ws, st, issues)
				st.iteration++
				continue
			}
		}

		if !o.cfg.Review {
			return finalize(StatusSucceeded, nil)
		}

		// Reviewing.
		log.Info("phase start", "phase", PhaseReviewing, "iteration", st.iteration)
		reviewPrompt, err := prompt.Review(cfg)
		if err != nil {
			return finalize(StatusFailed, err)
		}
		res := o.cfg.Agent.Invoke(ctx, reviewPrompt, ws.Path)
		if !res.Succeeded {
			// Failed review phase: handled like a failed test, retried on the
			// next iteration.
			log.Warn("review invocation failed", "error", res.Err)
			st.iteration++
			continue
		}

		outcome, err := review.Extract(res.Output)
		if errors.Is(err, review.ErrUnparseable) {
			// Formatting problems in review output never block a unit.
			log.Warn("review output unparseable, accepting with warning", "error", err)
			return finalize(StatusSucceeded, nil)
		}
		if err != nil {
			return finalize(StatusFailed, err)
		}

		switch verdict := o.cfg.Policy.Evaluate(outcome.Issues, outcome.Approved); verdict {
		case review.Accepted:
			return finalize(StatusSucceeded, nil)
		case review.AcceptedWithinPolicy:
			st.recordFound(outcome.Issues)
			st.deferred = outcome.Issues
			log.Info("accepted within policy", "deferred", len(outcome.Issues), "policy", o.cfg.Policy.Describe())
			return finalize(StatusSucceeded, nil)
		default: // Rejected
			st.recordFound(outcome.Issues)
			log.Info("review rejected", "issues", len(outcome.Issues), "verdict", verdict)
			o.fix(ctx, log, cfg, ws, st, outcome.Issues)
			st.iteration++
		}
	}

	// Budget exhausted. The last issue list is persisted as the deferred
	// record for visibility even though the unit failed.
	st.deferred = st.lastIssues
	return finalize(StatusExhausted, errors.New("iteration budget exhausted"))
}

// fix invokes the agent with a fix prompt for the given issues. Fixes are
// optimistically counted as soon as the invocation succeeds; the next
// iteration's test/review re-verifies the assumption.
func (o *Orchestrator) fix(ctx context.Context, log *slog.Logger, cfg provider.Config, ws *gitx.Workspace, st *run, issues []review.Issue) {
	log.Info("phase start", "phase", PhaseFixing, "iteration", st.iteration, "issues", len(issues))
	p, err := prompt.Fix(cfg, st.iteration, issues)
	if err != nil {
		log.Warn("fix prompt render failed", "error", err)
		return
	}
	if res := o.cfg.Agent.Invoke(ctx, p, ws.Path); res.Succeeded {
		st.issuesFixed += len(issues)
	} else {
		log.Warn("fix invocation failed", "error", res.Err)
	}
}

func (st *run) recordFound(issues []review.Issue) {
	st.issuesFound += len(issues)
	st.lastIssues = issues
}
