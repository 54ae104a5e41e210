package policy

import (
	"testing"

	"github.com/pithecene-io/thence/projector"
	"github.com/pithecene-io/thence/types"
)

func actor(id string) *string { return &id }

func baseState(taskID string) *projector.RunState {
	return &projector.RunState{
		SpecApproved:   true,
		ChecksApproved: true,
		Tasks: map[string]*projector.TaskState{
			taskID: {
				Task: types.Task{TaskID: taskID, State: types.TaskStateReady},
			},
		},
		OpenQuestions: map[string]*types.Question{},
	}
}

func TestDerive_Claimable(t *testing.T) {
	state := baseState("t1")
	gates, err := NewEngine().Derive(state)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !gates.Tasks["t1"].Claimable {
		t.Fatal("expected t1 claimable")
	}
}

func TestDerive_ClaimableFalseWhenPaused(t *testing.T) {
	state := baseState("t1")
	state.Paused = true
	gates, err := NewEngine().Derive(state)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if gates.Tasks["t1"].Claimable {
		t.Fatal("expected claimable false while run paused")
	}
	if !gates.RunPaused {
		t.Fatal("expected run_paused gate to reflect state.Paused")
	}
}

func TestDerive_ReviewableDefeatedWhenReviewerEqualsImplementer(t *testing.T) {
	state := baseState("t1")
	ts := state.Tasks["t1"]
	ts.Submitted = true
	ts.ImplementerActor = actor("alice")
	ts.ReviewerActor = actor("alice")

	gates, err := NewEngine().Derive(state)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if gates.Tasks["t1"].Reviewable {
		t.Fatal("expected reviewable defeated when reviewer equals implementer")
	}
}

func TestDerive_ReviewableHoldsByDefaultWithDistinctReviewer(t *testing.T) {
	state := baseState("t1")
	ts := state.Tasks["t1"]
	ts.Submitted = true
	ts.ImplementerActor = actor("alice")
	ts.ReviewerActor = actor("bob")

	gates, err := NewEngine().Derive(state)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !gates.Tasks["t1"].Reviewable {
		t.Fatal("expected reviewable to hold with a distinct reviewer")
	}
}

func TestDerive_Closable(t *testing.T) {
	state := baseState("t1")
	ts := state.Tasks["t1"]
	ts.Submitted = true
	ts.ReviewApproved = true
	ts.ChecksPassed = true

	gates, err := NewEngine().Derive(state)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !gates.Tasks["t1"].Closable || !gates.Tasks["t1"].MergeReady {
		t.Fatal("expected t1 closable and merge-ready")
	}
}

func TestDerive_NilStateIsPolicyContradiction(t *testing.T) {
	_, err := NewEngine().Derive(nil)
	if err == nil {
		t.Fatal("expected error for nil state")
	}
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrPolicyContradiction {
		t.Fatalf("expected ErrPolicyContradiction, got %v", err)
	}
}

func TestTheory_StrictRuleIsConclusive(t *testing.T) {
	th := NewTheory(
		Rule{Name: "default-open", Head: "claimable", Defeasible: true, Priority: 1},
		Rule{Name: "strict-block", Head: "claimable", Requires: []Literal{"blocked"}},
	)
	facts := Facts{"blocked": true}
	if !th.Query("claimable", facts) {
		t.Fatal("expected strict rule to prove claimable")
	}
}
