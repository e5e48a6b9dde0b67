package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/batch"
	"scribe/internal/format"
	"scribe/internal/logging"
	"scribe/internal/mode"
	"scribe/internal/wiring"
)

var runFlags struct {
	providers     string
	units         []string
	parallel      int
	maxIterations int
	dryRun        bool

	repoDir      string
	worktreesDir string
	runsDir      string
	baseRef      string
	branchPrefix string

	agentBinary  string
	model        string
	agentTimeout time.Duration
	testTimeout  time.Duration

	skipTests  bool
	skipReview bool

	openPR    bool
	prBase    string
	draft     bool
	labels    []string
	reviewers []string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the generate-test-review-fix pipeline for the selected units",
	Long: `Run creates one git worktree per selected unit, then drives the agent
through generation, testing, review and bounded fix iterations. Results land
under the runs directory: results.json, summary.md, per-unit logs and
deferred-issue files.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.providers, "providers", "providers.yaml", "Providers file (YAML or JSON)")
	f.StringSliceVar(&runFlags.units, "units", nil, "Unit slugs to run (default: all providers in the file)")
	f.IntVar(&runFlags.parallel, "parallel", 4, "Max pipelines in flight")
	f.IntVar(&runFlags.maxIterations, "max-iterations", 3, "Fix-invocation budget per unit")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Log intended actions without invoking git, the agent, or tests")
	f.StringVar(&runFlags.repoDir, "repo", ".", "Base git repository the worktrees hang off")
	f.StringVar(&runFlags.worktreesDir, "worktrees", ".scribe/worktrees", "Parent directory for per-unit worktrees")
	f.StringVar(&runFlags.runsDir, "runs-dir", ".scribe/runs", "Run artifacts root")
	f.StringVar(&runFlags.baseRef, "base-ref", "main", "Ref new unit branches start from")
	f.StringVar(&runFlags.branchPrefix, "branch-prefix", "scribe/", "Prefix for per-unit branch names")
	f.StringVar(&runFlags.agentBinary, "agent", "claude", "Agent binary")
	f.StringVar(&runFlags.model, "model", "", "Model identifier passed to the agent")
	f.DurationVar(&runFlags.agentTimeout, "agent-timeout", 20*time.Minute, "Hard per-invocation agent timeout")
	f.DurationVar(&runFlags.testTimeout, "test-timeout", 10*time.Minute, "Per-target test run timeout")
	f.BoolVar(&runFlags.skipTests, "skip-tests", false, "Skip the testing phase")
	f.BoolVar(&runFlags.skipReview, "skip-review", false, "Skip the reviewing phase")
	f.BoolVar(&runFlags.openPR, "open-pr", false, "Commit, push and open a pull request for accepted units")
	f.StringVar(&runFlags.prBase, "pr-base", "main", "Pull request target branch")
	f.BoolVar(&runFlags.draft, "draft", false, "Open pull requests as drafts")
	f.StringSliceVar(&runFlags.labels, "labels", nil, "Labels to apply to opened pull requests")
	f.StringSliceVar(&runFlags.reviewers, "reviewers", nil, "Reviewers to request on opened pull requests")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	execMode := mode.Live
	if runFlags.dryRun {
		execMode = mode.DryRun
	}
	level, err := parseLevel(rootFlags.logLevel)
	if err != nil {
		return err
	}

	report, err := wiring.Run(ctx, wiring.Options{
		ProvidersPath: runFlags.providers,
		Units:         runFlags.units,
		RepoDir:       runFlags.repoDir,
		WorktreesDir:  runFlags.worktreesDir,
		RunsDir:       runFlags.runsDir,
		BaseRef:       runFlags.baseRef,
		BranchPrefix:  runFlags.branchPrefix,
		Parallel:      runFlags.parallel,
		MaxIterations: runFlags.maxIterations,
		SkipTests:     runFlags.skipTests,
		SkipReview:    runFlags.skipReview,
		AgentBinary:   runFlags.agentBinary,
		Model:         runFlags.model,
		AgentTimeout:  runFlags.agentTimeout,
		TestTimeout:   runFlags.testTimeout,
		OpenPR:        runFlags.openPR,
		Token:         os.Getenv("GITHUB_TOKEN"),
		PRBase:        runFlags.prBase,
		Draft:         runFlags.draft,
		Labels:        runFlags.labels,
		Reviewers:     runFlags.reviewers,
		Logger:        logging.New("scribe"),
		LogLevel:      level,
		Mode:          execMode,
	})
	if err != nil {
		return err
	}

	fmt.Println(batch.SummaryTable(format.ASCII, report.Results))
	fmt.Printf("Run %s: %d/%d units succeeded, artifacts in %s\n",
		report.ID, report.Succeeded(), len(report.Results), report.Dir)

	if report.Failed() {
		// Partial failure is still a failed run for CI purposes.
		return fmt.Errorf("%d of %d units did not succeed", len(report.Results)-report.Succeeded(), len(report.Results))
	}
	return nil
}
