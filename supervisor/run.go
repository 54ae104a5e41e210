package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/thence/projector"
	"github.com/pithecene-io/thence/scheduler"
	"github.com/pithecene-io/thence/types"
)

// Resume scans for leases left behind by a prior, crashed supervisor
// process. A fresh lease means another supervisor is still alive and
// this process must refuse to start; a stale lease is cleared and its
// attempt reported via attempt_interrupted so the scheduler reopens it.
func (l *Loop) Resume(ctx context.Context) error {
	scan, err := l.leases.Scan()
	if err != nil {
		return types.NewError(types.ErrStorage, "supervisor.Resume", err)
	}
	if scan.DoubleSupervisor {
		return types.NewError(types.ErrDoubleSupervisor, "supervisor.Resume",
			fmt.Errorf("run %s: a fresh lease exists; another supervisor is active", l.cfg.RunID))
	}
	for _, stale := range scan.Stale {
		l.cfg.Logger.Warn("clearing stale lease on resume", map[string]any{
			"task_id": stale.TaskID, "attempt": stale.Attempt, "role": string(stale.Role),
		})
		if err := l.interruptAttempt(ctx, stale.TaskID, stale.Attempt); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks the control loop until the run reaches a terminal status or
// pauses awaiting human input. It never dispatches while paused: the
// scheduler itself returns no decisions when gates.RunPaused is set, so a
// pause simply drains into an idle tick and Run returns nil, leaving the
// resume/answer path to continue the log later.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := l.projectedState(ctx)
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("supervisor: run %s has not been bootstrapped", l.cfg.RunID)
		}
		if state.Status.IsTerminal() {
			return nil
		}

		gates, err := l.engine.Derive(state)
		if err != nil {
			return err
		}

		decisions := scheduler.Decide(state, gates, scheduler.Occupancy{Config: l.cfg.RunConfig})

		if len(decisions) == 0 {
			if state.Paused {
				return nil
			}
			if allTasksSettled(state) {
				return l.completeRun(ctx)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.tickInterval):
			}
			continue
		}

		for _, d := range decisions {
			if err := l.dispatch(ctx, d, state); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) completeRun(ctx context.Context) error {
	_, err := l.append(ctx, &types.Event{Type: types.EventRunCompleted})
	if err == nil {
		l.cfg.Collector.IncRunCompleted()
	}
	return err
}

// allTasksSettled reports whether every registered task has reached a
// terminal per-task outcome (closed or failed-terminal). An empty task
// set is not considered settled; a run with zero tasks never completes on
// its own (a translated plan must register at least one task).
func allTasksSettled(state *projector.RunState) bool {
	if len(state.Tasks) == 0 {
		return false
	}
	for _, ts := range state.Tasks {
		if !ts.Closed && !ts.FailedTerminal {
			return false
		}
	}
	return true
}
