package gitx

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"scribe/internal/mode"
)

// Stage adds paths to the index inside the workspace. No paths stages everything.
func (m *Manager) Stage(ctx context.Context, ws *Workspace, paths ...string) error {
	if m.cfg.Mode == mode.DryRun {
		return nil
	}
	args := append([]string{"add"}, paths...)
	if len(paths) == 0 {
		args = []string{"add", "-A"}
	}
	if _, err := m.cfg.Runner.Run(ctx, ws.Path, args...); err != nil {
		return fmt.Errorf("%w: stage: %v", ErrVcs, err)
	}
	return nil
}

// Commit records staged changes. An empty index is not an error: the commit
// is skipped and (false, nil) returned.
func (m *Manager) Commit(ctx context.Context, ws *Workspace, message string) (bool, error) {
	if m.cfg.Mode == mode.DryRun {
		m.log.Info("dry-run: would commit", "unit", ws.Unit, "message", message)
		return true, nil
	}
	if _, err := m.cfg.Runner.Run(ctx, ws.Path, "diff", "--cached", "--quiet"); err == nil {
		return false, nil // nothing staged
	}
	if _, err := m.cfg.Runner.Run(ctx, ws.Path, "commit", "-m", message); err != nil {
		return false, fmt.Errorf("%w: commit: %v", ErrVcs, err)
	}
	return true, nil
}

// Push publishes the workspace branch with upstream tracking.
func (m *Manager) Push(ctx context.Context, ws *Workspace) error {
	if m.cfg.Mode == mode.DryRun {
		m.log.Info("dry-run: would push", "unit", ws.Unit, "branch", ws.Branch)
		return nil
	}
	if _, err := m.cfg.Runner.Run(ctx, ws.Path, "push", "-u", m.cfg.Remote, ws.Branch); err != nil {
		return fmt.Errorf("%w: push %s: %v", ErrVcs, ws.Branch, err)
	}
	return nil
}

// HasUnpushedCommits reports whether the workspace branch has commits its
// upstream does not. A branch with no upstream counts as unpushed.
func (m *Manager) HasUnpushedCommits(ctx context.Context, ws *Workspace) (bool, error) {
	if _, err := m.cfg.Runner.Run(ctx, ws.Path, "rev-parse", "--abbrev-ref", "@{u}"); err != nil {
		return true, nil
	}
	out, err := m.cfg.Runner.Run(ctx, ws.Path, "rev-list", "--count", "@{u}..HEAD")
	if err != nil {
		return false, fmt.Errorf("%w: rev-list: %v", ErrVcs, err)
	}
	return strings.TrimSpace(out) != "0", nil
}

// remoteURLPattern matches the owner/repo tail of SSH and HTTPS git URLs.
var remoteURLPattern = regexp.MustCompile(`[:/]([^/:]+)/([^/]+?)(?:\.git)?$`)

// RemoteIdentity resolves the owner and repository name from the configured
// remote URL.
func (m *Manager) RemoteIdentity(ctx context.Context) (owner, repo string, err error) {
	out, err := m.run(ctx, "remote", "get-url", m.cfg.Remote)
	if err != nil {
		return "", "", fmt.Errorf("%w: remote get-url: %v", ErrVcs, err)
	}
	return ParseRemoteURL(strings.TrimSpace(out))
}

// ParseRemoteURL extracts owner/repo from a git remote URL,
// e.g. git@github.com:acme/docs.git or https://github.com/acme/docs.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	matches := remoteURLPattern.FindStringSubmatch(url)
	if matches == nil {
		return "", "", fmt.Errorf("cannot parse remote URL %q", url)
	}
	return matches[1], matches[2], nil
}
