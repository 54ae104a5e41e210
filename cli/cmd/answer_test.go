package cmd

import (
	"context"
	"testing"

	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/question"
	"github.com/pithecene-io/thence/types"
)

// seedAnsweredRun writes a minimal event log under runsRoot with one open
// question, for exercising answerAction against a real on-disk store.
func seedAnsweredRun(t *testing.T, runsRoot, runID string) {
	t.Helper()
	store := eventstore.New(runsRoot, eventstore.NoopMirror{})
	store.RegisterRun(runID)
	ctx := context.Background()

	if _, err := store.Append(ctx, runID, &types.Event{Type: types.EventRunStarted}); err != nil {
		t.Fatalf("append run_started: %v", err)
	}

	qs := question.New(store, question.NoopNotifier{})
	if _, err := qs.Open(ctx, runID, types.QuestionSpecClarification, nil, "which branch?", false); err != nil {
		t.Fatalf("open question: %v", err)
	}
}

func TestAnswerAction_AnswersOpenQuestion(t *testing.T) {
	runsRoot := t.TempDir()
	seedAnsweredRun(t, runsRoot, "run-1")

	store := eventstore.New(runsRoot, eventstore.NoopMirror{})
	if err := store.Replay(context.Background(), "run-1"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	events, err := store.LoadSince(context.Background(), "run-1", 0)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	var questionID string
	for _, ev := range events {
		if ev.Type == types.EventHumanInputRequested {
			questionID, _ = ev.Payload["question_id"].(string)
		}
	}
	if questionID == "" {
		t.Fatal("expected a seeded question_id")
	}

	c, out := newReadOnlyContext(t, map[string]string{
		"run":      "run-1",
		"question": questionID,
		"text":     "use main",
	})
	if err := answerAction(runsRoot)(c); err != nil {
		t.Fatalf("answerAction: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected a confirmation message")
	}
}

func TestAnswerAction_UnknownQuestion(t *testing.T) {
	runsRoot := t.TempDir()
	seedAnsweredRun(t, runsRoot, "run-1")

	c, _ := newReadOnlyContext(t, map[string]string{
		"run":      "run-1",
		"question": "does-not-exist",
		"text":     "use main",
	})
	if err := answerAction(runsRoot)(c); err == nil {
		t.Fatal("expected an error for an unknown question id")
	}
}
