// Package testrun runs per-language test suites inside a unit's workspace and
// normalizes the results for the issue classifier.
package testrun

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"scribe/internal/logging"
	"scribe/internal/mode"
)

// Target is one language-specific test surface: a sub-directory under the
// unit's artifact root plus non-interactive install and run-once commands.
type Target struct {
	Name    string   // e.g. "node"
	Dir     string   // sub-directory name under the artifact root
	Install []string // dependency install argv; empty = no install step
	Run     []string // test run argv; exit 0 = pass
}

// DefaultTargets returns the supported language targets.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:    "node",
			Dir:     "node",
			Install: []string{"npm", "install", "--no-audit", "--no-fund"},
			Run:     []string{"npm", "test", "--", "--ci"},
		},
		{
			Name:    "python",
			Dir:     "python",
			Install: []string{"pip", "install", "-r", "requirements.txt"},
			Run:     []string{"python", "-m", "pytest", "-x", "-q"},
		},
		{
			Name:    "go",
			Dir:     "go",
			Install: []string{"go", "mod", "download"},
			Run:     []string{"go", "test", "./..."},
		},
	}
}

// TargetResult is the normalized outcome for one discovered target.
type TargetResult struct {
	Target string `json:"target"`
	Passed bool   `json:"passed"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report is the outcome of a full test pass over one workspace.
type Report struct {
	Passed  bool           `json:"passed"`
	Targets []TargetResult `json:"targets"`
}

// Config configures a Runner.
type Config struct {
	Targets        []Target      // default DefaultTargets()
	InstallTimeout time.Duration // default 5min
	RunTimeout     time.Duration // default 10min
	Logger         *slog.Logger
	Mode           mode.Mode
}

// Runner discovers and executes test targets.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// New builds a Runner with defaults applied.
func New(cfg Config) *Runner {
	if cfg.Targets == nil {
		cfg.Targets = DefaultTargets()
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = 5 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Runner{cfg: cfg, log: cfg.Logger}
}

// Run executes every configured target whose directory exists under
// artifactRoot. Missing directories are skipped, not failed. Overall Passed is
// the AND of discovered targets; zero discovered targets passes (nothing to
// fail). Install or run errors become a failed target with output preserved.
func (r *Runner) Run(ctx context.Context, artifactRoot string) Report {
	report := Report{Passed: true}

	for _, target := range r.cfg.Targets {
		dir := filepath.Join(artifactRoot, target.Dir)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			r.log.Debug("target directory missing, skipping", "target", target.Name, "dir", dir)
			continue
		}

		if r.cfg.Mode == mode.DryRun {
			r.log.Info("dry-run: would test target", "target", target.Name)
			report.Targets = append(report.Targets, TargetResult{Target: target.Name, Passed: true, Output: "[dry-run]"})
			continue
		}

		result := r.runTarget(ctx, target, dir)
		if !result.Passed {
			report.Passed = false
		}
		report.Targets = append(report.Targets, result)
	}

	return report
}

func (r *Runner) runTarget(ctx context.Context, target Target, dir string) TargetResult {
	if len(target.Install) > 0 {
		out, err := r.exec(ctx, dir, r.cfg.InstallTimeout, target.Install)
		if err != nil {
			r.log.Warn("dependency install failed", "target", target.Name, "error", err)
			return TargetResult{
				Target: target.Name,
				Output: out,
				Error:  fmt.Sprintf("install: %v", err),
			}
		}
	}

	out, err := r.exec(ctx, dir, r.cfg.RunTimeout, target.Run)
	if err != nil {
		r.log.Info("tests failed", "target", target.Name)
		return TargetResult{Target: target.Name, Output: out, Error: err.Error()}
	}
	r.log.Info("tests passed", "target", target.Name)
	return TargetResult{Target: target.Name, Passed: true, Output: out}
}

func (r *Runner) exec(ctx context.Context, dir string, timeout time.Duration, argv []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return buf.String(), fmt.Errorf("timed out after %s", timeout)
	}
	return buf.String(), err
}
