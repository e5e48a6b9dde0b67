// Package gitx is the isolation manager: it creates and removes per-unit git
// worktrees off one shared base repository, and carries the rest of the VCS
// collaborator surface (stage, commit, push, remote identity).
package gitx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a git subcommand in dir and returns combined output.
// The indirection exists so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CLIRunner runs the real git binary.
type CLIRunner struct {
	// GitPath overrides the binary name; empty means "git" from PATH.
	GitPath string
}

func (r CLIRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := r.GitPath
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return buf.String(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(buf.String()))
	}
	return strings.TrimSpace(buf.String()), nil
}
