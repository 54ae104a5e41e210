package supervisor

import (
	"context"
	"testing"

	"github.com/pithecene-io/thence/mergequeue"
	"github.com/pithecene-io/thence/types"
	"github.com/pithecene-io/thence/worker"
)

func TestLoop_CancelInterruptsInFlightAttempt(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		plan: &worker.Result{PlanTranslation: &worker.PlanTranslationResult{
			SPL:   "rules",
			Tasks: []worker.PlanTranslationTask{{ID: "t1"}},
		}},
		implementer: []*worker.Result{{Implementer: &worker.ImplementerResult{Submitted: true}}},
		reviewer:    []*worker.Result{{Reviewer: &worker.ReviewerResult{Approved: true}}},
	}
	l := newTestLoop(t, store, runner, &fakeMerger{store: store}, noopChecker{})

	ctx := context.Background()
	if err := l.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	// Append a claim directly (no tick runs) so the task is in flight,
	// claimed but not yet submitted, when Cancel runs.
	if _, err := l.append(ctx, &types.Event{
		Type:      types.EventTaskClaimed,
		TaskID:    strPtr("t1"),
		ActorRole: rolePtr(types.ActorRoleImplementer),
		ActorID:   strPtr("implementer"),
		Attempt:   intPtr(1),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := l.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	foundInterrupt, foundCancelled := false, false
	for _, ev := range store.events {
		if ev.Type == types.EventAttemptInterrupted && ev.TaskID != nil && *ev.TaskID == "t1" {
			foundInterrupt = true
		}
		if ev.Type == types.EventRunCancelled {
			foundCancelled = true
		}
	}
	if !foundInterrupt {
		t.Fatalf("expected attempt_interrupted for the in-flight task t1, got %v", store.events)
	}
	if !foundCancelled {
		t.Fatalf("expected run_cancelled, got %v", store.events)
	}
}

func TestLoop_CancelOnTerminalRunIsNoop(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		plan: &worker.Result{PlanTranslation: &worker.PlanTranslationResult{
			SPL:   "rules",
			Tasks: []worker.PlanTranslationTask{{ID: "t1"}},
		}},
		implementer: []*worker.Result{{Implementer: &worker.ImplementerResult{Submitted: true}}},
		reviewer:    []*worker.Result{{Reviewer: &worker.ReviewerResult{Approved: true}}},
	}
	merger := &fakeMerger{outcome: mergequeue.OutcomeMerged, store: store}
	l := newTestLoop(t, store, runner, merger, noopChecker{})

	ctx := context.Background()
	if err := l.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	before := len(store.events)
	if err := l.Cancel(ctx); err != nil {
		t.Fatalf("Cancel on completed run: %v", err)
	}
	if len(store.events) != before {
		t.Fatalf("expected no new events for a cancel on a terminal run, got %d new", len(store.events)-before)
	}
}

