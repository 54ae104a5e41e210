package supervisor

import (
	"context"
	"fmt"

	"github.com/pithecene-io/thence/mergequeue"
	"github.com/pithecene-io/thence/projector"
	"github.com/pithecene-io/thence/scheduler"
	"github.com/pithecene-io/thence/types"
	"github.com/pithecene-io/thence/worker"
)

const (
	implementerActorID = "implementer"
	reviewerActorID    = "reviewer"
)

// progressLogger returns a worker.Spec.OnProgress callback that logs every
// frame the subprocess emits at debug level, tagged with the dispatching
// task and attempt. Progress frames never affect control-loop state; they
// exist purely for an operator tailing logs while an attempt runs.
func (l *Loop) progressLogger(taskID string, attempt int) func(*types.ProgressFrame) {
	return func(f *types.ProgressFrame) {
		l.cfg.Logger.Debug("worker progress", map[string]any{
			"task_id": taskID,
			"attempt": attempt,
			"role":    f.Role,
			"message": f.Message,
		})
	}
}

// dispatch executes one scheduler decision and appends whatever events it
// produces. Errors returned here are ones the caller (Run) treats as
// fatal to the tick; recoverable per-attempt failures are translated into
// events (attempt_interrupted, review_found_issues, checks_reported
// false, merge_conflict) rather than returned as errors.
func (l *Loop) dispatch(ctx context.Context, d scheduler.Decision, state *projector.RunState) error {
	switch d.Kind {
	case scheduler.DecisionClaim:
		return l.dispatchClaim(ctx, d)
	case scheduler.DecisionReview:
		return l.dispatchReview(ctx, d, state)
	case scheduler.DecisionChecks:
		return l.dispatchChecks(ctx, d)
	case scheduler.DecisionMerge:
		return l.dispatchMerge(ctx, d, state)
	case scheduler.DecisionTaskFailedTerminal:
		return l.dispatchFailTerminal(ctx, d)
	case scheduler.DecisionRunFailed:
		return l.dispatchRunFailed(ctx, d)
	default:
		return fmt.Errorf("supervisor: unknown decision kind %q", d.Kind)
	}
}

func (l *Loop) dispatchClaim(ctx context.Context, d scheduler.Decision) error {
	if _, err := l.append(ctx, &types.Event{
		Type:      types.EventTaskClaimed,
		TaskID:    &d.TaskID,
		ActorRole: rolePtr(types.ActorRoleImplementer),
		ActorID:   strPtr(implementerActorID),
		Attempt:   intPtr(d.Attempt),
	}); err != nil {
		return err
	}
	l.cfg.Collector.IncTaskClaimed(d.TaskID)

	if _, err := l.leases.Acquire(d.TaskID, d.Attempt, types.ActorRoleImplementer); err != nil {
		return fmt.Errorf("supervisor: acquire implementer lease for %s#%d: %w", d.TaskID, d.Attempt, err)
	}
	defer func() { _ = l.leases.Release(d.TaskID, d.Attempt, types.ActorRoleImplementer) }()

	wt := l.layout.worktree(d.TaskID, d.Attempt, implementerActorID)
	if err := provisionWorktree(wt, l.cfg.Provision); err != nil {
		l.cfg.Logger.Warn("worktree provisioning failed, reopening attempt", map[string]any{"task_id": d.TaskID, "attempt": d.Attempt, "error": err.Error()})
		return l.interruptAttempt(ctx, d.TaskID, d.Attempt)
	}

	capsule := types.Capsule{SpecRef: types.CapsuleSpecRef{Path: l.cfg.SpecPath, SHA256: l.cfg.SpecSHA256}}
	capsuleFile := l.layout.capsuleFile(d.TaskID, d.Attempt, worker.RoleImplementer)
	if err := writeCapsule(capsuleFile, capsule); err != nil {
		return err
	}
	promptFile := l.layout.promptFile(d.TaskID, d.Attempt, worker.RoleImplementer)
	if err := writePrompt(promptFile, fmt.Sprintf("Implement task %s.", d.TaskID)); err != nil {
		return err
	}

	result, err := l.runWithLeaseRenewal(ctx, d.TaskID, d.Attempt, types.ActorRoleImplementer, worker.Spec{
		AdapterCommand: l.cfg.AgentCommand,
		Role:           worker.RoleImplementer,
		Worktree:       wt,
		PromptFile:     promptFile,
		ResultFile:     l.layout.resultFile(d.TaskID, d.Attempt, worker.RoleImplementer),
		CapsuleFile:    capsuleFile,
		Timeout:        worker.DefaultTimeoutFor(worker.RoleImplementer, l.cfg.RunConfig),
		OnProgress:     l.progressLogger(d.TaskID, d.Attempt),
	})

	if err != nil || result.Timeout || result.Implementer == nil || !result.Implementer.Submitted {
		if result != nil && result.Timeout {
			l.cfg.Collector.IncWorkerTimeout()
		}
		l.cfg.Logger.Warn("implementer attempt failed", map[string]any{"task_id": d.TaskID, "attempt": d.Attempt, "error": errString(err)})
		return l.interruptAttempt(ctx, d.TaskID, d.Attempt)
	}
	l.cfg.Collector.IncWorkerLaunchSuccess()

	_, err = l.append(ctx, &types.Event{Type: types.EventWorkSubmitted, TaskID: &d.TaskID, Attempt: intPtr(d.Attempt)})
	return err
}

func (l *Loop) interruptAttempt(ctx context.Context, taskID string, attempt int) error {
	_, err := l.append(ctx, &types.Event{Type: types.EventAttemptInterrupted, TaskID: &taskID, Attempt: intPtr(attempt)})
	return err
}

func (l *Loop) dispatchReview(ctx context.Context, d scheduler.Decision, state *projector.RunState) error {
	reviewer := reviewerActor(d)
	if _, err := l.append(ctx, &types.Event{
		Type:      types.EventReviewRequested,
		TaskID:    &d.TaskID,
		ActorRole: rolePtr(types.ActorRoleReviewer),
		ActorID:   strPtr(reviewer),
		Attempt:   intPtr(d.Attempt),
	}); err != nil {
		return err
	}

	if _, err := l.leases.Acquire(d.TaskID, d.Attempt, types.ActorRoleReviewer); err != nil {
		return fmt.Errorf("supervisor: acquire reviewer lease for %s#%d: %w", d.TaskID, d.Attempt, err)
	}
	defer func() { _ = l.leases.Release(d.TaskID, d.Attempt, types.ActorRoleReviewer) }()

	wt := l.layout.worktree(d.TaskID, d.Attempt, implementerActorID)
	ts := state.Tasks[d.TaskID]
	capsule := types.Capsule{SpecRef: types.CapsuleSpecRef{Path: l.cfg.SpecPath, SHA256: l.cfg.SpecSHA256}}
	if ts != nil {
		capsule.Objective = ts.Task.Objective
		capsule.Acceptance = ts.Task.Acceptance
		capsule.Checks = ts.Task.Checks
	}
	capsuleFile := l.layout.capsuleFile(d.TaskID, d.Attempt, worker.RoleReviewer)
	if err := writeCapsule(capsuleFile, capsule); err != nil {
		return err
	}
	promptFile := l.layout.promptFile(d.TaskID, d.Attempt, worker.RoleReviewer)
	if err := writePrompt(promptFile, l.cfg.ReviewerPrompt); err != nil {
		return err
	}

	result, err := l.runWithLeaseRenewal(ctx, d.TaskID, d.Attempt, types.ActorRoleReviewer, worker.Spec{
		AdapterCommand: l.cfg.AgentCommand,
		Role:           worker.RoleReviewer,
		Worktree:       wt,
		PromptFile:     promptFile,
		ResultFile:     l.layout.resultFile(d.TaskID, d.Attempt, worker.RoleReviewer),
		CapsuleFile:    capsuleFile,
		Timeout:        worker.DefaultTimeoutFor(worker.RoleReviewer, l.cfg.RunConfig),
		OnProgress:     l.progressLogger(d.TaskID, d.Attempt),
	})

	approved := false
	var findings []string
	if err == nil && !result.Timeout && result.Reviewer != nil {
		approved = result.Reviewer.Approved
		findings = result.Reviewer.Findings
	} else {
		findings = []string{fmt.Sprintf("reviewer dispatch failed: %s", errString(err))}
	}

	evType := types.EventReviewFoundIssues
	if approved {
		evType = types.EventReviewApproved
	}
	findingsAny := make([]any, len(findings))
	for i, f := range findings {
		findingsAny[i] = f
	}
	_, appendErr := l.append(ctx, &types.Event{
		Type:      evType,
		TaskID:    &d.TaskID,
		Attempt:   intPtr(d.Attempt),
		ActorRole: rolePtr(types.ActorRoleReviewer),
		ActorID:   strPtr(reviewer),
		Payload:   map[string]any{"findings": findingsAny},
	})
	return appendErr
}

// reviewerActor returns the reviewer actor id the scheduler assigned to d,
// falling back to the fixed reviewerActorID when none was set (e.g. a
// Decision built directly by a test without going through scheduler.Decide).
func reviewerActor(d scheduler.Decision) string {
	if d.Actor != "" {
		return d.Actor
	}
	return reviewerActorID
}

func (l *Loop) dispatchChecks(ctx context.Context, d scheduler.Decision) error {
	wt := l.layout.worktree(d.TaskID, d.Attempt, implementerActorID)
	checkErr := l.checker.Run(ctx, wt, l.cfg.CheckCommands)

	payload := map[string]any{"passed": checkErr == nil}
	if checkErr != nil {
		payload["error"] = checkErr.Error()
	}
	_, err := l.append(ctx, &types.Event{
		Type:    types.EventChecksReported,
		TaskID:  &d.TaskID,
		Attempt: intPtr(d.Attempt),
		Payload: payload,
	})
	return err
}

func (l *Loop) dispatchMerge(ctx context.Context, d scheduler.Decision, state *projector.RunState) error {
	wt := l.layout.worktree(d.TaskID, d.Attempt, implementerActorID)
	branch := fmt.Sprintf("%s/%s/attempt%d", l.cfg.AppName, d.TaskID, d.Attempt)

	outcome, err := l.merge.Run(ctx, l.cfg.RunID, d.TaskID, d.Attempt, wt, branch, l.cfg.TargetBranch)
	if err != nil {
		return err
	}
	if outcome == mergequeue.OutcomeMerged {
		l.cfg.Collector.IncTaskClosed()
	}
	return nil
}

func (l *Loop) dispatchFailTerminal(ctx context.Context, d scheduler.Decision) error {
	_, err := l.append(ctx, &types.Event{
		Type:    types.EventTaskFailedTerm,
		TaskID:  &d.TaskID,
		Attempt: intPtr(d.Attempt),
		Payload: map[string]any{"reason": d.Reason},
	})
	if err == nil {
		l.cfg.Collector.IncTaskFailedTerminal()
	}
	return err
}

func (l *Loop) dispatchRunFailed(ctx context.Context, d scheduler.Decision) error {
	_, err := l.append(ctx, &types.Event{
		Type:    types.EventRunFailed,
		Payload: map[string]any{"reason": d.Reason, "task_id": d.TaskID},
	})
	if err == nil {
		l.cfg.Collector.IncRunFailed()
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
