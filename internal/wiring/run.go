// Package wiring composes the full engine: providers file in, batch report
// out. cmd/scribe and the end-to-end specs both enter through Run.
package wiring

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/agent"
	"scribe/internal/batch"
	"scribe/internal/gitx"
	"scribe/internal/logging"
	"scribe/internal/mode"
	"scribe/internal/pipeline"
	"scribe/internal/provider"
	"scribe/internal/remote"
	"scribe/internal/review"
	"scribe/internal/testrun"
)

// Options is the one flat knob surface the CLI maps its flags onto.
type Options struct {
	ProvidersPath string
	Units         []string // empty selects every provider in the file

	RepoDir      string
	WorktreesDir string
	RunsDir      string
	BaseRef      string
	BranchPrefix string

	Parallel      int
	MaxIterations int
	SkipTests     bool
	SkipReview    bool

	AgentBinary      string
	Model            string
	AgentTimeout     time.Duration
	InstallTimeout   time.Duration
	TestTimeout      time.Duration
	LivenessInterval time.Duration

	OpenPR    bool
	Token     string
	PRBase    string
	Draft     bool
	Labels    []string
	Reviewers []string

	Policy review.Policy

	Logger   *slog.Logger
	LogLevel slog.Level
	Mode     mode.Mode
}

// Run executes the whole batch: load and select providers, prepare the
// isolation manager, then hand the unit list to the batch runner with a
// pipeline factory that binds each unit's logger.
func Run(ctx context.Context, opts Options) (*batch.Report, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	all, err := provider.LoadFromPath(opts.ProvidersPath)
	if err != nil {
		return nil, err
	}
	units, err := provider.Select(all, opts.Units)
	if err != nil {
		return nil, err
	}

	git := gitx.NewManager(gitx.ManagerConfig{
		RepoDir:      opts.RepoDir,
		WorktreesDir: opts.WorktreesDir,
		Logger:       log,
		Mode:         opts.Mode,
	})

	var publisher batch.Publisher
	if opts.OpenPR {
		publisher = remote.New(remote.Config{
			Git:       git,
			Token:     opts.Token,
			Base:      opts.PRBase,
			Draft:     opts.Draft,
			Labels:    opts.Labels,
			Reviewers: opts.Reviewers,
			Logger:    log,
			Mode:      opts.Mode,
		})
	}

	factory := func(ulog *slog.Logger) batch.UnitRunner {
		cfg := pipeline.DefaultConfig()
		cfg.Agent = agent.New(agent.Config{
			Binary:           opts.AgentBinary,
			Model:            opts.Model,
			Timeout:          opts.AgentTimeout,
			LivenessInterval: opts.LivenessInterval,
			Logger:           ulog,
			Mode:             opts.Mode,
		})
		cfg.Tester = testrun.New(testrun.Config{
			InstallTimeout: opts.InstallTimeout,
			RunTimeout:     opts.TestTimeout,
			Logger:         ulog,
			Mode:           opts.Mode,
		})
		if opts.Policy != (review.Policy{}) {
			cfg.Policy = opts.Policy
		}
		if opts.MaxIterations > 0 {
			cfg.MaxIterations = opts.MaxIterations
		}
		cfg.Tests = !opts.SkipTests
		cfg.Review = !opts.SkipReview
		cfg.Logger = ulog
		return pipeline.New(cfg)
	}

	runner := batch.New(batch.Config{
		Git:          git,
		Pipeline:     factory,
		Publisher:    publisher,
		Parallel:     opts.Parallel,
		BaseRef:      opts.BaseRef,
		BranchPrefix: opts.BranchPrefix,
		RunsDir:      opts.RunsDir,
		LogLevel:     opts.LogLevel,
		Logger:       log,
		Mode:         opts.Mode,
	})
	return runner.Execute(ctx, units)
}
