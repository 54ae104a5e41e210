package question

import (
	"context"
	"testing"

	"github.com/pithecene-io/thence/types"
)

type fakeAppender struct {
	events []*types.Event
}

func (f *fakeAppender) Append(_ context.Context, runID string, event *types.Event) (int64, error) {
	event.RunID = runID
	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

func (f *fakeAppender) countOf(t types.EventType) int {
	n := 0
	for _, e := range f.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func TestOpen_RaisesRequestAndPause(t *testing.T) {
	store := &fakeAppender{}
	s := New(store, nil)

	q, err := s.Open(context.Background(), "run1", types.QuestionSpecClarification, nil, "which branch?", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if q.QuestionID == "" {
		t.Fatal("expected a generated question id")
	}
	if store.countOf(types.EventHumanInputRequested) != 1 {
		t.Fatalf("expected one human_input_requested event, got %d", store.countOf(types.EventHumanInputRequested))
	}
	if store.countOf(types.EventRunPaused) != 1 {
		t.Fatalf("expected run_paused appended, got %d", store.countOf(types.EventRunPaused))
	}
}

func TestOpen_SkipsPauseWhenAlreadyPaused(t *testing.T) {
	store := &fakeAppender{}
	s := New(store, nil)

	if _, err := s.Open(context.Background(), "run1", types.QuestionChecksApproval, nil, "approve?", true); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.countOf(types.EventRunPaused) != 0 {
		t.Fatalf("expected no run_paused event when alreadyPaused=true, got %d", store.countOf(types.EventRunPaused))
	}
}

func TestAnswer_LastOpenResumesRun(t *testing.T) {
	store := &fakeAppender{}
	s := New(store, nil)

	if err := s.Answer(context.Background(), "run1", "q1", "yes", types.QuestionChecksApproval, nil, true); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if store.countOf(types.EventHumanInputProvided) != 1 {
		t.Fatal("expected human_input_provided")
	}
	if store.countOf(types.EventChecksApproved) != 1 {
		t.Fatal("expected checks_approved resolution event")
	}
	if store.countOf(types.EventRunResumed) != 1 {
		t.Fatal("expected run_resumed when lastOpen=true")
	}
}

func TestAnswer_NotLastOpenStaysPaused(t *testing.T) {
	store := &fakeAppender{}
	s := New(store, nil)

	if err := s.Answer(context.Background(), "run1", "q1", "yes", types.QuestionSpecClarification, nil, false); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if store.countOf(types.EventRunResumed) != 0 {
		t.Fatal("expected no run_resumed while other questions remain open")
	}
}
