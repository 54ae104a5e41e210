// Package supervisor implements the control loop (component 4): it ticks
// the event log through the projector and policy engine, hands the
// scheduler's decisions to the worker orchestrator, lease manager, merge
// queue and question subsystem, and appends the events those dispatches
// produce until the run reaches a terminal status.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
)

// Checker runs a task's configured check commands against its worktree
// and reports whether all of them passed.
type Checker interface {
	Run(ctx context.Context, worktree string, commands []string) error
}

// CommandChecker runs each configured command via the shell, stopping at
// the first failure. A nil error means every command exited zero.
type CommandChecker struct{}

// Run implements Checker.
func (CommandChecker) Run(ctx context.Context, worktree string, commands []string) error {
	for _, command := range commands {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = worktree
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("check %q failed: %w\n%s", command, err, out)
		}
	}
	return nil
}
