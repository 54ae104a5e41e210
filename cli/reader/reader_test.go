package reader

import (
	"context"
	"testing"

	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/types"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func newTestStore(t *testing.T) *eventstore.Store {
	t.Helper()
	return eventstore.New(t.TempDir(), eventstore.NoopMirror{})
}

func TestStoreReader_InspectRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	runID := "run-a"
	taskID := "t1"

	store.RegisterRun(runID)

	events := []*types.Event{
		{RunID: runID, Type: types.EventRunStarted},
		{RunID: runID, Type: types.EventPlanTranslated, Payload: map[string]any{"plan_sha256": "abc"}},
		{RunID: runID, Type: types.EventPlanValidated},
		{RunID: runID, Type: types.EventTaskRegistered, TaskID: &taskID},
		{RunID: runID, Type: types.EventSpecApproved},
		{RunID: runID, Type: types.EventChecksApproved},
		{RunID: runID, Type: types.EventTaskClaimed, TaskID: &taskID, ActorID: strp("impl-a"), Attempt: intp(1)},
	}
	for _, e := range events {
		if _, err := store.Append(ctx, runID, e); err != nil {
			t.Fatalf("append %s: %v", e.Type, err)
		}
	}

	r := NewStoreReader(store)
	summary, err := r.InspectRun(ctx, runID)
	if err != nil {
		t.Fatalf("InspectRun: %v", err)
	}

	if summary.RunID != runID {
		t.Errorf("expected run id %s, got %s", runID, summary.RunID)
	}
	if summary.Status != types.RunStatusRunning {
		t.Errorf("expected running status, got %s", summary.Status)
	}
	if !summary.PlanValidated || !summary.SpecApproved || !summary.ChecksApproved {
		t.Fatalf("expected gates open, got %+v", summary)
	}
	if len(summary.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(summary.Tasks))
	}
	if task := summary.Tasks[0]; task.TaskID != taskID || !task.InFlight {
		t.Errorf("expected in-flight task %s, got %+v", taskID, task)
	}
}

func TestStoreReader_InspectRun_UnknownRun(t *testing.T) {
	store := newTestStore(t)

	r := NewStoreReader(store)
	if _, err := r.InspectRun(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unregistered run")
	}
}

func TestStubReader_InspectRun(t *testing.T) {
	s := NewStubReader()

	summary, err := s.InspectRun(context.Background(), "run-stub")
	if err != nil {
		t.Fatalf("InspectRun: %v", err)
	}
	if summary.RunID != "run-stub" {
		t.Errorf("expected run-stub, got %s", summary.RunID)
	}

	if _, err := s.InspectRun(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestSetGetReader(t *testing.T) {
	original := GetReader()
	defer SetReader(original)

	stub := NewStubReader()
	SetReader(stub)
	if GetReader() != stub {
		t.Fatal("expected GetReader to return the reader set via SetReader")
	}
}
