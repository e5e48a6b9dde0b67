// Package remote publishes an accepted unit: commit, push, and open a pull
// request on the code-hosting service.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"scribe/internal/gitx"
	"scribe/internal/logging"
	"scribe/internal/mode"
	"scribe/internal/pipeline"
)

// Service is the slice of the code-hosting API the integrator needs. The
// production implementation wraps go-github; tests substitute a fake.
type Service interface {
	CreatePull(ctx context.Context, owner, repo string, pr PullSpec) (url string, number int, err error)
	FindPullByBranch(ctx context.Context, owner, repo, branch string) (url string, number int, err error)
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	RequestReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error
}

// PullSpec describes a pull request to open.
type PullSpec struct {
	Title string
	Body  string
	Head  string // source branch
	Base  string // target branch
	Draft bool
}

// Config configures an Integrator.
type Config struct {
	Git       *gitx.Manager
	Service   Service // nil = GitHub with Token
	Token     string  // used only when Service is nil
	Base      string  // PR target branch; default "main"
	Draft     bool
	Labels    []string
	Reviewers []string
	Logger    *slog.Logger
	Mode      mode.Mode
}

// Integrator commits, pushes, and opens pull requests for accepted units.
type Integrator struct {
	cfg Config
	log *slog.Logger
}

// New builds an Integrator. With a nil Service it talks to GitHub using the
// configured token.
func New(cfg Config) *Integrator {
	if cfg.Base == "" {
		cfg.Base = "main"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Service == nil {
		cfg.Service = newGitHubService(cfg.Token)
	}
	return &Integrator{cfg: cfg, log: cfg.Logger}
}

// Publish stages and commits the workspace, pushes the branch, and opens a
// pull request for the unit. Returns the PR URL, or "" when there was nothing
// to publish. Creation reporting a duplicate idempotently resolves to the
// existing open PR for the branch.
func (in *Integrator) Publish(ctx context.Context, ws *gitx.Workspace, res pipeline.OperationResult) (string, error) {
	log := in.log.With("unit", ws.Unit, "branch", ws.Branch)

	if err := in.cfg.Git.Stage(ctx, ws); err != nil {
		return "", err
	}
	committed, err := in.cfg.Git.Commit(ctx, ws, commitMessage(res))
	if err != nil {
		return "", err
	}
	if !committed {
		// A previous run may have committed and then failed before pushing.
		unpushed, err := in.cfg.Git.HasUnpushedCommits(ctx, ws)
		if err != nil {
			return "", err
		}
		if !unpushed {
			log.Info("nothing to publish")
			return "", nil
		}
	}

	if err := in.cfg.Git.Push(ctx, ws); err != nil {
		return "", err
	}

	if in.cfg.Mode == mode.DryRun {
		log.Info("dry-run: would open pull request", "base", in.cfg.Base)
		return "", nil
	}

	owner, repo, err := in.cfg.Git.RemoteIdentity(ctx)
	if err != nil {
		return "", err
	}

	spec := PullSpec{
		Title: fmt.Sprintf("docs: %s webhook bundle", res.Label),
		Body:  prBody(res),
		Head:  ws.Branch,
		Base:  in.cfg.Base,
		Draft: in.cfg.Draft,
	}
	url, number, err := in.cfg.Service.CreatePull(ctx, owner, repo, spec)
	if isDuplicatePull(err) {
		log.Info("pull request already open, reusing")
		url, number, err = in.cfg.Service.FindPullByBranch(ctx, owner, repo, ws.Branch)
	}
	if err != nil {
		return "", fmt.Errorf("open pull request: %w", err)
	}

	if len(in.cfg.Labels) > 0 {
		if err := in.cfg.Service.AddLabels(ctx, owner, repo, number, in.cfg.Labels); err != nil {
			log.Warn("adding labels failed", "error", err)
		}
	}
	if len(in.cfg.Reviewers) > 0 {
		if err := in.cfg.Service.RequestReviewers(ctx, owner, repo, number, in.cfg.Reviewers); err != nil {
			log.Warn("requesting reviewers failed", "error", err)
		}
	}

	log.Info("pull request ready", "url", url)
	return url, nil
}

func commitMessage(res pipeline.OperationResult) string {
	return fmt.Sprintf("docs(%s): generated webhook bundle (%d iterations)", res.Unit, res.Iterations)
}

func prBody(res pipeline.OperationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated documentation/example bundle for **%s**.\n\n", res.Label)
	fmt.Fprintf(&b, "- Iterations: %d\n- Issues found: %d\n- Issues fixed: %d\n", res.Iterations, res.IssuesFound, res.IssuesFixed)
	if n := len(res.Deferred); n > 0 {
		fmt.Fprintf(&b, "- Deferred issues: %d (see the deferred-issues file in the run artifacts)\n", n)
	}
	return b.String()
}

// isDuplicatePull recognizes the hosting service's "already exists" response.
func isDuplicatePull(err error) bool {
	if err == nil {
		return false
	}
	var ghErr *github.ErrorResponse
	if ok := asGitHubError(err, &ghErr); ok {
		if ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func asGitHubError(err error, target **github.ErrorResponse) bool {
	for err != nil {
		if ghErr, ok := err.(*github.ErrorResponse); ok {
			*target = ghErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// githubService wraps go-github behind the Service interface.
type githubService struct {
	client *github.Client
}

func newGitHubService(token string) *githubService {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &githubService{client: github.NewClient(hc)}
}

func (s *githubService) CreatePull(ctx context.Context, owner, repo string, spec PullSpec) (string, int, error) {
	pr, _, err := s.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(spec.Title),
		Body:  github.String(spec.Body),
		Head:  github.String(spec.Head),
		Base:  github.String(spec.Base),
		Draft: github.Bool(spec.Draft),
	})
	if err != nil {
		return "", 0, err
	}
	return pr.GetHTMLURL(), pr.GetNumber(), nil
}

func (s *githubService) FindPullByBranch(ctx context.Context, owner, repo, branch string) (string, int, error) {
	prs, _, err := s.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + branch,
	})
	if err != nil {
		return "", 0, err
	}
	if len(prs) == 0 {
		return "", 0, fmt.Errorf("no open pull request for branch %s", branch)
	}
	return prs[0].GetHTMLURL(), prs[0].GetNumber(), nil
}

func (s *githubService) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	_, _, err := s.client.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels)
	return err
}

func (s *githubService) RequestReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error {
	_, _, err := s.client.PullRequests.RequestReviewers(ctx, owner, repo, number, github.ReviewersRequest{
		Reviewers: reviewers,
	})
	return err
}
