// Package mergequeue implements the single-threaded close path (component
// 4.6). The scheduler only ever hands the queue one merge-ready task at a
// time; the queue's job is to run the merge, interpret its two-outcome
// contract, and translate the outcome into the event the control loop
// appends.
package mergequeue

import (
	"context"
	"os/exec"

	"github.com/pithecene-io/thence/types"
)

// Outcome is the two-way result of a merge attempt named in the data
// model: either the attempt's branch merges cleanly, or it conflicts and
// the task reopens for another attempt.
type Outcome string

const (
	OutcomeMerged   Outcome = "merged"
	OutcomeConflict Outcome = "conflict"
)

// Merger runs the actual merge command against a task's worktree/branch.
// Implementations shell out to the configured VCS; ExitCode 0 always means
// OutcomeMerged, anything else means OutcomeConflict — there is no third
// state.
type Merger interface {
	Merge(ctx context.Context, worktree, branch, targetBranch string) error
}

// CommandMerger runs an external merge command, e.g. `git merge --no-ff`.
type CommandMerger struct {
	Command []string // e.g. []string{"git", "merge", "--no-ff"}
}

// Merge implements Merger by running Command with branch appended, in worktree.
func (m CommandMerger) Merge(ctx context.Context, worktree, branch, targetBranch string) error {
	args := append(append([]string{}, m.Command[1:]...), branch)
	cmd := exec.CommandContext(ctx, m.Command[0], args...)
	cmd.Dir = worktree
	return cmd.Run()
}

// Appender is the minimal eventstore.Store slice the queue needs.
type Appender interface {
	Append(ctx context.Context, runID string, event *types.Event) (int64, error)
}

// Queue serializes merge attempts: Run is never called concurrently by
// the control loop for more than one task, matching the scheduler's
// at-most-one DecisionMerge-per-tick contract.
type Queue struct {
	merger Merger
	store  Appender
}

// New builds a Queue around a Merger and an event appender.
func New(merger Merger, store Appender) *Queue {
	return &Queue{merger: merger, store: store}
}

// Run attempts the merge for one task attempt and appends the resulting
// event: merge_succeeded+task_closed on success, merge_conflict on
// failure (the task reopens; the scheduler will reclaim it on a later
// tick up to the attempt budget).
func (q *Queue) Run(ctx context.Context, runID, taskID string, attempt int, worktree, branch, targetBranch string) (Outcome, error) {
	mergeErr := q.merger.Merge(ctx, worktree, branch, targetBranch)

	if mergeErr == nil {
		if _, err := q.store.Append(ctx, runID, &types.Event{
			RunID:   runID,
			Type:    types.EventMergeSucceeded,
			TaskID:  &taskID,
			Attempt: &attempt,
		}); err != nil {
			return "", err
		}
		if _, err := q.store.Append(ctx, runID, &types.Event{
			RunID:   runID,
			Type:    types.EventTaskClosed,
			TaskID:  &taskID,
			Attempt: &attempt,
		}); err != nil {
			return "", err
		}
		return OutcomeMerged, nil
	}

	if _, err := q.store.Append(ctx, runID, &types.Event{
		RunID:   runID,
		Type:    types.EventMergeConflict,
		TaskID:  &taskID,
		Attempt: &attempt,
		Payload: map[string]any{"error": mergeErr.Error()},
	}); err != nil {
		return "", err
	}
	return OutcomeConflict, nil
}
