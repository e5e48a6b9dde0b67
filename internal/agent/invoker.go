// Package agent invokes the external AI coding agent as a subprocess bound to
// a unit's workspace. The invoker is stateless between calls and never
// retries; retry belongs to the pipeline orchestrator.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"scribe/internal/logging"
	"scribe/internal/mode"
)

// ErrTimeout marks an invocation killed by the hard timeout. It is a failed
// phase, never a silent truncation.
var ErrTimeout = errors.New("agent invocation timed out")

// Config configures an Invoker.
type Config struct {
	Binary           string        // agent binary; default "claude"
	Model            string        // model identifier passed to the agent
	Args             []string      // full argument list; nil means the claude defaults
	Timeout          time.Duration // hard per-invocation timeout; default 20min
	LivenessInterval time.Duration // how often to log that the agent is still running; default 30s
	Logger           *slog.Logger
	Mode             mode.Mode
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Binary:           "claude",
		Timeout:          20 * time.Minute,
		LivenessInterval: 30 * time.Second,
	}
}

// Result is the outcome of one invocation.
type Result struct {
	Output    string        // combined stdout+stderr
	Succeeded bool          // exit 0 within the timeout
	Err       error         // non-zero exit, spawn error, or ErrTimeout
	Duration  time.Duration
}

// Invoker runs the agent subprocess.
type Invoker struct {
	cfg Config
	log *slog.Logger
}

// New builds an Invoker, applying Config defaults.
func New(cfg Config) *Invoker {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = def.LivenessInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Invoker{cfg: cfg, log: cfg.Logger}
}

// Invoke delivers prompt to the agent over stdin with the workspace as the
// working directory, streaming output into an in-memory buffer. In dry-run
// mode no process is spawned and a synthetic success returns immediately.
func (i *Invoker) Invoke(ctx context.Context, prompt, workDir string) Result {
	if i.cfg.Mode == mode.DryRun {
		i.log.Info("dry-run: would invoke agent", "dir", workDir, "prompt_bytes", len(prompt))
		return Result{Output: "[dry-run] agent invocation skipped", Succeeded: true}
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, i.cfg.Binary, i.args()...)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(prompt)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var captured bytes.Buffer
	cmd.Stdout = &captured
	cmd.Stderr = &captured

	// Periodic liveness messages distinguish "working" from "hung" during
	// long waits. The ticker is owned by this call and torn down on every
	// exit path.
	stopLiveness := i.startLiveness(workDir)
	defer stopLiveness()

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		i.log.Warn("agent timed out", "dir", workDir, "timeout", i.cfg.Timeout)
		return Result{Output: captured.String(), Err: fmt.Errorf("%w after %s", ErrTimeout, i.cfg.Timeout), Duration: elapsed}
	case err != nil:
		return Result{Output: captured.String(), Err: fmt.Errorf("agent: %w", err), Duration: elapsed}
	}
	return Result{Output: captured.String(), Succeeded: true, Duration: elapsed}
}

func (i *Invoker) args() []string {
	if i.cfg.Args != nil {
		return i.cfg.Args
	}
	args := []string{"-p", "--dangerously-skip-permissions"}
	if i.cfg.Model != "" {
		args = append(args, "--model", i.cfg.Model)
	}
	return args
}

// startLiveness spawns the liveness ticker and returns its teardown func.
func (i *Invoker) startLiveness(workDir string) func() {
	ticker := time.NewTicker(i.cfg.LivenessInterval)
	done := make(chan struct{})
	start := time.Now()
	go func() {
		for {
			select {
			case <-ticker.C:
				i.log.Info("agent still running", "dir", workDir, "elapsed", time.Since(start).Round(time.Second))
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
