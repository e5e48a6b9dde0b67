// Package batch runs the pipeline across many units: sequential workspace
// creation, bounded-parallel pipeline execution, and run-level aggregation.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scribe/internal/gitx"
	"scribe/internal/logging"
	"scribe/internal/mode"
	"scribe/internal/pipeline"
	"scribe/internal/provider"
)

// UnitRunner executes one unit's pipeline inside its workspace.
type UnitRunner interface {
	Run(ctx context.Context, cfg provider.Config, ws *gitx.Workspace) pipeline.OperationResult
}

// Publisher commits, pushes, and opens a pull request for a finished unit.
type Publisher interface {
	Publish(ctx context.Context, ws *gitx.Workspace, res pipeline.OperationResult) (string, error)
}

// PipelineFactory builds the per-unit runner bound to that unit's logger.
type PipelineFactory func(log *slog.Logger) UnitRunner

// Config configures a batch Runner.
type Config struct {
	Git          *gitx.Manager
	Pipeline     PipelineFactory
	Publisher    Publisher // nil disables remote integration
	Parallel     int       // max pipelines in flight; default 4
	BaseRef      string    // default "main"
	BranchPrefix string    // default "scribe/"
	RunsDir      string    // run artifacts root; default "runs"
	LogLevel     slog.Level
	Logger       *slog.Logger
	Mode         mode.Mode
}

// Runner drives a whole batch of units through the pipeline.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// New builds a batch Runner with defaults applied.
func New(cfg Config) *Runner {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	if cfg.BaseRef == "" {
		cfg.BaseRef = "main"
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "scribe/"
	}
	if cfg.RunsDir == "" {
		cfg.RunsDir = "runs"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Runner{cfg: cfg, log: cfg.Logger}
}

// Report is the run-level outcome: one result per selected unit, in the
// original selection order.
type Report struct {
	ID      string
	Dir     string
	Results []pipeline.OperationResult
	Started time.Time
	Elapsed time.Duration
}

// Succeeded counts terminal successes, including exhausted-with-deferred.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Status.OK() {
			n++
		}
	}
	return n
}

// Failed reports whether any unit ended in a non-success status.
func (r *Report) Failed() bool {
	return r.Succeeded() != len(r.Results)
}

// Execute runs the pipeline for every unit. Workspace creation is strictly
// sequential; the repository's metadata store does not tolerate concurrent
// worktree surgery. Pipelines then run in parallel, at most cfg.Parallel in
// flight. A unit's failure never aborts the batch.
func (r *Runner) Execute(ctx context.Context, units []provider.Config) (*Report, error) {
	started := time.Now()
	report := &Report{
		ID:      started.Format("20060102-150405") + "-" + uuid.NewString()[:8],
		Results: make([]pipeline.OperationResult, len(units)),
		Started: started,
	}
	report.Dir = filepath.Join(r.cfg.RunsDir, report.ID)
	if err := os.MkdirAll(report.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	r.log.Info("batch started", "run", report.ID, "units", len(units), "parallel", r.cfg.Parallel)

	workspaces := make([]*gitx.Workspace, len(units))
	for i, unit := range units {
		slug := unit.Slug()
		ws, err := r.cfg.Git.Create(ctx, slug, r.cfg.BranchPrefix+slug, r.cfg.BaseRef)
		if err != nil {
			r.log.Error("workspace creation failed", "unit", slug, "error", err)
			report.Results[i] = pipeline.OperationResult{
				Unit:   slug,
				Label:  unit.DisplayLabel(),
				Status: pipeline.StatusFailed,
				Error:  fmt.Sprintf("workspace: %v", err),
			}
			continue
		}
		workspaces[i] = ws
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Parallel)
	for i, unit := range units {
		ws := workspaces[i]
		if ws == nil {
			continue // isolation failed, result already recorded
		}
		i, unit := i, unit
		g.Go(func() error {
			report.Results[i] = r.runUnit(ctx, report.Dir, unit, ws)
			return nil
		})
	}
	_ = g.Wait() // goroutines capture failures in their result slot

	if err := r.writeArtifacts(report); err != nil {
		return report, err
	}
	report.Elapsed = time.Since(started)
	r.log.Info("batch finished", "run", report.ID,
		"succeeded", report.Succeeded(), "total", len(report.Results),
		"elapsed", report.Elapsed.Round(time.Second))
	return report, nil
}

// runUnit runs one unit end to end: pipeline, optional remote integration,
// and workspace cleanup. Every failure is captured in the result.
func (r *Runner) runUnit(ctx context.Context, runDir string, unit provider.Config, ws *gitx.Workspace) pipeline.OperationResult {
	slug := unit.Slug()
	ulog, err := logging.NewUnitLog(filepath.Join(runDir, slug+".log"), r.cfg.LogLevel, r.log)
	if err != nil {
		r.log.Warn("per-unit log unavailable", "unit", slug, "error", err)
		ulog = nil
	}
	defer ulog.Close()
	log := r.log.With("unit", slug)
	if ulog != nil {
		log = ulog.Logger.With("unit", slug)
	}

	res := r.cfg.Pipeline(log).Run(ctx, unit, ws)

	switch {
	case !res.Status.OK():
		// A failed or exhausted unit leaves nothing worth keeping.
		if err := r.cfg.Git.Remove(ctx, ws); err != nil {
			log.Warn("workspace cleanup failed", "error", err)
		}
	case r.cfg.Publisher != nil:
		url, err := r.cfg.Publisher.Publish(ctx, ws, res)
		if err != nil {
			// Keep the workspace so the branch can be pushed by hand.
			log.Error("remote integration failed", "error", err)
			res.Error = joinNotes(res.Error, fmt.Sprintf("publish: %v", err))
			break
		}
		res.PullRequest = url
		if err := r.cfg.Git.Remove(ctx, ws); err != nil {
			log.Warn("workspace cleanup failed", "error", err)
		}
	default:
		log.Info("workspace kept for inspection", "path", ws.Path)
	}
	return res
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
