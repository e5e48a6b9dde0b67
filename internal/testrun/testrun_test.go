package testrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/mode"
)

func mkTargetDir(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRun_ZeroTargetsPasses(t *testing.T) {
	r := New(Config{})
	report := r.Run(context.Background(), t.TempDir())
	if !report.Passed {
		t.Error("a unit with zero discovered targets passes")
	}
	if len(report.Targets) != 0 {
		t.Errorf("no targets expected, got %+v", report.Targets)
	}
}

func TestRun_MissingDirSkippedExistingRun(t *testing.T) {
	root := t.TempDir()
	mkTargetDir(t, root, "node")

	r := New(Config{Targets: []Target{
		{Name: "node", Dir: "node", Run: []string{"true"}},
		{Name: "python", Dir: "python", Run: []string{"false"}},
	}})

	report := r.Run(context.Background(), root)
	if !report.Passed {
		t.Errorf("only the existing, passing target should count: %+v", report)
	}
	if len(report.Targets) != 1 || report.Targets[0].Target != "node" {
		t.Errorf("expected exactly the node target, got %+v", report.Targets)
	}
}

func TestRun_FailedTargetFailsReport(t *testing.T) {
	root := t.TempDir()
	mkTargetDir(t, root, "node")
	mkTargetDir(t, root, "python")

	r := New(Config{Targets: []Target{
		{Name: "node", Dir: "node", Run: []string{"true"}},
		{Name: "python", Dir: "python", Run: []string{"sh", "-c", "echo assertion exploded; exit 1"}},
	}})

	report := r.Run(context.Background(), root)
	if report.Passed {
		t.Fatal("one failing target must fail the report")
	}
	var py TargetResult
	for _, tr := range report.Targets {
		if tr.Target == "python" {
			py = tr
		}
	}
	if py.Passed {
		t.Fatal("python target should have failed")
	}
	if !strings.Contains(py.Output, "assertion exploded") {
		t.Errorf("raw output must be preserved for the classifier, got %q", py.Output)
	}
	if py.Error == "" {
		t.Error("failed target should carry the error")
	}
}

func TestRun_InstallFailureFailsTarget(t *testing.T) {
	root := t.TempDir()
	mkTargetDir(t, root, "node")

	r := New(Config{Targets: []Target{
		{Name: "node", Dir: "node", Install: []string{"sh", "-c", "echo no registry; exit 7"}, Run: []string{"true"}},
	}})

	report := r.Run(context.Background(), root)
	if report.Passed {
		t.Fatal("install failure must fail the target")
	}
	got := report.Targets[0]
	if !strings.HasPrefix(got.Error, "install:") {
		t.Errorf("error should identify the install step, got %q", got.Error)
	}
	if !strings.Contains(got.Output, "no registry") {
		t.Errorf("install output must be preserved, got %q", got.Output)
	}
}

func TestRun_TimeoutIsCapturedFailure(t *testing.T) {
	root := t.TempDir()
	mkTargetDir(t, root, "node")

	r := New(Config{
		Targets:    []Target{{Name: "node", Dir: "node", Run: []string{"sleep", "5"}}},
		RunTimeout: 50 * time.Millisecond,
	})

	report := r.Run(context.Background(), root)
	if report.Passed {
		t.Fatal("timed-out target must fail")
	}
	if !strings.Contains(report.Targets[0].Error, "timed out") {
		t.Errorf("expected timeout error, got %q", report.Targets[0].Error)
	}
}

func TestRun_DryRunExecutesNothing(t *testing.T) {
	root := t.TempDir()
	mkTargetDir(t, root, "node")

	marker := filepath.Join(root, "touched")
	r := New(Config{
		Targets: []Target{{Name: "node", Dir: "node", Run: []string{"touch", marker}}},
		Mode:    mode.DryRun,
	})

	report := r.Run(context.Background(), root)
	if !report.Passed {
		t.Fatal("dry-run reports synthetic pass")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("dry-run must not execute target commands")
	}
}
