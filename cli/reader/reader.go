package reader

import (
	"context"
	"fmt"
	"sort"

	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/projector"
)

// StoreReader reads run state by replaying a run's event log through the
// projector. It holds no cache: every call re-reads from disk, so it always
// reflects the latest appended event.
type StoreReader struct {
	store *eventstore.Store
}

// NewStoreReader builds a StoreReader over the given event store.
func NewStoreReader(store *eventstore.Store) *StoreReader {
	return &StoreReader{store: store}
}

// InspectRun loads every event for runID and projects it into a RunSummary.
func (r *StoreReader) InspectRun(ctx context.Context, runID string) (*RunSummary, error) {
	events, err := r.store.LoadSince(ctx, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("reader: load events for %s: %w", runID, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("reader: no events recorded for run %s", runID)
	}

	state, err := projector.Project(events)
	if err != nil {
		return nil, fmt.Errorf("reader: project run %s: %w", runID, err)
	}

	return summarize(state), nil
}

func summarize(state *projector.RunState) *RunSummary {
	summary := &RunSummary{
		RunID:           state.RunID,
		Status:          state.Status,
		PlanHash:        state.PlanHash,
		PlanValidated:   state.PlanValidated,
		SpecApproved:    state.SpecApproved,
		ChecksApproved:  state.ChecksApproved,
		Paused:          state.Paused,
		MergeInProgress: state.MergeInProgress,
		LastSeq:         state.LastSeq,
	}

	if state.FailureDetail != nil {
		reason := state.FailureDetail.String()
		summary.FailureReason = &reason
	}

	taskIDs := make([]string, 0, len(state.Tasks))
	for id := range state.Tasks {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)

	for _, id := range taskIDs {
		ts := state.Tasks[id]
		summary.Tasks = append(summary.Tasks, TaskSummary{
			TaskID:             ts.Task.TaskID,
			Objective:          ts.Task.Objective,
			State:              ts.Task.State,
			Attempt:            ts.Attempt,
			ImplementerActor:   ts.ImplementerActor,
			ReviewerActor:      ts.ReviewerActor,
			InFlight:           ts.InFlight,
			Submitted:          ts.Submitted,
			ReviewApproved:     ts.ReviewApproved,
			UnresolvedFindings: ts.UnresolvedFindings,
			ChecksPassed:       ts.ChecksPassed,
			Closed:             ts.Closed,
			FailedTerminal:     ts.FailedTerminal,
		})
	}

	questionIDs := make([]string, 0, len(state.OpenQuestions))
	for id := range state.OpenQuestions {
		questionIDs = append(questionIDs, id)
	}
	sort.Strings(questionIDs)

	for _, id := range questionIDs {
		q := state.OpenQuestions[id]
		summary.OpenQuestions = append(summary.OpenQuestions, QuestionSummary{
			QuestionID: q.QuestionID,
			Kind:       string(q.Kind),
			TaskID:     q.TaskID,
			Prompt:     q.Prompt,
			OpenedAt:   q.OpenedAt,
			Answer:     q.Answer,
			ResolvedAt: q.ResolvedAt,
		})
	}

	return summary
}

var _ Reader = (*StoreReader)(nil)
