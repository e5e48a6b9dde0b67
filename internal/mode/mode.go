// Package mode defines the process-wide execution mode. Every side-effecting
// collaborator receives a Mode at construction so dry runs cannot leak a
// mutation through a forgotten flag.
package mode

// Mode selects between real execution and dry-run.
type Mode int

const (
	// Live performs real side effects: worktrees, subprocesses, pushes, PRs.
	Live Mode = iota
	// DryRun performs no external side effect and returns synthetic successes.
	DryRun
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == DryRun {
		return "dry-run"
	}
	return "live"
}
