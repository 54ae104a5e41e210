package mergequeue

import (
	"context"
	"errors"
	"testing"

	"github.com/pithecene-io/thence/types"
)

type fakeMerger struct {
	err error
}

func (f fakeMerger) Merge(context.Context, string, string, string) error { return f.err }

type fakeAppender struct {
	events []*types.Event
}

func (f *fakeAppender) Append(_ context.Context, runID string, event *types.Event) (int64, error) {
	event.RunID = runID
	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

func (f *fakeAppender) has(t types.EventType) bool {
	for _, e := range f.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func TestRun_MergeSucceedsClosesTask(t *testing.T) {
	store := &fakeAppender{}
	q := New(fakeMerger{}, store)

	outcome, err := q.Run(context.Background(), "run1", "t1", 1, "/tmp/wt", "attempt1", "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeMerged {
		t.Fatalf("expected OutcomeMerged, got %s", outcome)
	}
	if !store.has(types.EventMergeSucceeded) || !store.has(types.EventTaskClosed) {
		t.Fatalf("expected merge_succeeded and task_closed, got %+v", store.events)
	}
}

func TestRun_ConflictReopensTask(t *testing.T) {
	store := &fakeAppender{}
	q := New(fakeMerger{err: errors.New("conflict in foo.go")}, store)

	outcome, err := q.Run(context.Background(), "run1", "t1", 1, "/tmp/wt", "attempt1", "main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeConflict {
		t.Fatalf("expected OutcomeConflict, got %s", outcome)
	}
	if !store.has(types.EventMergeConflict) {
		t.Fatal("expected merge_conflict event")
	}
	if store.has(types.EventTaskClosed) {
		t.Fatal("task must not close on conflict")
	}
}
