package supervisor

import (
	"context"
	"fmt"
	"sort"

	"github.com/pithecene-io/thence/types"
)

// Cancel drains every in-flight attempt to attempt_interrupted, then
// appends run_cancelled. Unlike a pause, a cancelled run never resumes:
// IsTerminal treats it the same as completed or failed.
func (l *Loop) Cancel(ctx context.Context) error {
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

	taskIDs := make([]string, 0, len(state.Tasks))
	for id := range state.Tasks {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)

	for _, id := range taskIDs {
		ts := state.Tasks[id]
		if ts.InFlight {
			if err := l.interruptAttempt(ctx, id, ts.Attempt); err != nil {
				return err
			}
		}
	}

	_, err = l.append(ctx, &types.Event{Type: types.EventRunCancelled})
	return err
}
