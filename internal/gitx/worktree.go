package gitx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/logging"
	"scribe/internal/mode"
)

// ErrVcs tags unrecoverable version-control failures (fetch, branch, push).
// Callers record the unit as failed and continue the batch.
var ErrVcs = errors.New("vcs failure")

// Workspace is an isolated, branch-bound working copy used by exactly one unit.
type Workspace struct {
	Unit   string // unit slug
	Path   string // absolute worktree path
	Branch string
	// Owned is true when the manager created the worktree and may remove it.
	// Externally supplied workspaces are never auto-removed.
	Owned bool
}

// ManagerConfig configures the worktree manager.
type ManagerConfig struct {
	RepoDir      string // base repository the worktrees hang off
	WorktreesDir string // parent directory for created worktrees
	Remote       string // remote name; default "origin"
	Runner       Runner // default CLIRunner{}
	Logger       *slog.Logger
	Mode         mode.Mode
}

// Manager creates and removes per-unit worktrees. Create calls for different
// units must be serialized by the caller: git's metadata store does not accept
// concurrent worktree creation (see batch.Run).
type Manager struct {
	cfg ManagerConfig
	log *slog.Logger
}

// NewManager builds a Manager, applying defaults for Remote, Runner and Logger.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.Runner == nil {
		cfg.Runner = CLIRunner{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{cfg: cfg, log: log}
}

// pathFor returns the worktree path for a unit slug.
func (m *Manager) pathFor(unit string) string {
	return filepath.Join(m.cfg.WorktreesDir, unit)
}

// Create fetches baseRef, force-removes any stale worktree for the unit, then
// adds a fresh branch-bound worktree. If the remote already has a branch for
// this unit the new worktree resumes it; otherwise it branches from baseRef.
func (m *Manager) Create(ctx context.Context, unit, branch, baseRef string) (*Workspace, error) {
	path := m.pathFor(unit)

	if m.cfg.Mode == mode.DryRun {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("dry-run workspace dir: %w", err)
		}
		m.log.Info("dry-run: would create worktree", "unit", unit, "branch", branch, "base", baseRef)
		return &Workspace{Unit: unit, Path: path, Branch: branch, Owned: true}, nil
	}

	if _, err := m.run(ctx, "fetch", m.cfg.Remote, baseRef); err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrVcs, baseRef, err)
	}

	// A leftover worktree from an earlier run is an isolation conflict:
	// recoverable, resolved by forced removal.
	if _, err := os.Stat(path); err == nil {
		m.log.Warn("stale workspace found, removing", "unit", unit, "path", path)
		m.forceRemove(ctx, path)
	}

	remoteBranch := m.cfg.Remote + "/" + branch
	if m.remoteBranchExists(ctx, branch) {
		if _, err := m.run(ctx, "fetch", m.cfg.Remote, branch); err != nil {
			return nil, fmt.Errorf("%w: fetch branch %s: %v", ErrVcs, branch, err)
		}
		if _, err := m.run(ctx, "worktree", "add", "-B", branch, path, remoteBranch); err != nil {
			return nil, fmt.Errorf("%w: worktree add (resume %s): %v", ErrVcs, remoteBranch, err)
		}
		m.log.Info("workspace created from existing remote branch", "unit", unit, "branch", branch)
	} else {
		base := m.cfg.Remote + "/" + baseRef
		if _, err := m.run(ctx, "worktree", "add", "-b", branch, path, base); err != nil {
			return nil, fmt.Errorf("%w: worktree add (branch from %s): %v", ErrVcs, base, err)
		}
		m.log.Info("workspace created", "unit", unit, "branch", branch, "base", baseRef)
	}

	return &Workspace{Unit: unit, Path: path, Branch: branch, Owned: true}, nil
}

// Remove deletes the workspace. Idempotent: a nil workspace or a missing path
// is a no-op success; an externally supplied (not Owned) workspace is never
// touched. Structured removal falls back to recursive filesystem deletion.
func (m *Manager) Remove(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if !ws.Owned {
		m.log.Debug("workspace not owned by run, leaving in place", "unit", ws.Unit, "path", ws.Path)
		return nil
	}
	if _, err := os.Stat(ws.Path); os.IsNotExist(err) {
		return nil
	}
	if m.cfg.Mode == mode.DryRun {
		return os.RemoveAll(ws.Path)
	}
	return m.forceRemove(ctx, ws.Path)
}

// forceRemove tries `git worktree remove --force` and falls back to raw
// deletion plus a prune when git refuses (corrupted metadata, detached dirs).
func (m *Manager) forceRemove(ctx context.Context, path string) error {
	if _, err := m.run(ctx, "worktree", "remove", "--force", path); err != nil {
		m.log.Warn("structured worktree removal failed, deleting directly", "path", path, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("remove worktree %s: %w", path, rmErr)
		}
		_, _ = m.run(ctx, "worktree", "prune")
	}
	return nil
}

func (m *Manager) remoteBranchExists(ctx context.Context, branch string) bool {
	out, err := m.run(ctx, "ls-remote", "--heads", m.cfg.Remote, branch)
	return err == nil && strings.TrimSpace(out) != ""
}

func (m *Manager) run(ctx context.Context, args ...string) (string, error) {
	return m.cfg.Runner.Run(ctx, m.cfg.RepoDir, args...)
}
