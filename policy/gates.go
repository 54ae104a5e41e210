package policy

import (
	"fmt"

	"github.com/pithecene-io/thence/projector"
	"github.com/pithecene-io/thence/types"
)

// Literal name prefixes used when projecting RunState into Facts. Keeping
// these as helpers rather than fmt.Sprintf call sites at every use keeps
// the per-task literal names consistent between fact construction and
// rule bodies.
func readyLit(taskID string) Literal            { return Literal("ready:" + taskID) }
func reviewableLit(taskID string) Literal       { return Literal("reviewable:" + taskID) }
func inFlightLit(taskID string) Literal         { return Literal("in-flight:" + taskID) }
func submittedLit(taskID string) Literal        { return Literal("submitted:" + taskID) }
func reviewApprovedLit(taskID string) Literal   { return Literal("review-approved:" + taskID) }
func checksPassedLit(taskID string) Literal     { return Literal("checks-passed:" + taskID) }
func unresolvedFindingsLit(taskID string) Literal { return Literal("unresolved-findings:" + taskID) }
func blockedAmbiguityLit(taskID string) Literal { return Literal("blocked-ambiguity:" + taskID) }
func openQuestionLit(taskID string) Literal     { return Literal("open-question-affecting:" + taskID) }
func reviewerEqualsImplLit(taskID string) Literal {
	return Literal("reviewer-equals-implementer-only-candidate:" + taskID)
}

const (
	runPaused        Literal = "run-paused"
	specApproved     Literal = "spec_approved"
	checksApproved   Literal = "checks_approved"
	mergeInProgress  Literal = "merge-in-progress"
)

// StaticTheory returns the rule bundle shipped with the binary. Most
// derivations here (claimable, closable, merge-ready) follow directly and
// strictly from the task state transition table and are evaluated inline
// in Derive for readability. The one genuinely non-monotonic case,
// reviewable(T), is expressed as a real defeasible rule per task so the
// engine exercises priority-based defeat, not just strict conjunction.
func StaticTheory() *Theory {
	return NewTheory()
}

// reviewableRule builds the per-task defeasible rule: by default any
// submitted, not-yet-approved attempt is reviewable, but that default is
// defeated when the only candidate reviewer is the implementer
// themselves (the reviewerEqualsImplLit axiom, set directly from
// RunState in factsFor when that condition holds).
func reviewableRule(taskID string) Rule {
	return Rule{
		Name:       "reviewer-any-available:" + taskID,
		Head:       reviewableLit(taskID),
		Requires:   []Literal{submittedLit(taskID)},
		Forbids:    []Literal{reviewApprovedLit(taskID)},
		Defeasible: true,
		Priority:   1,
		Unless:     []Literal{reviewerEqualsImplLit(taskID)},
	}
}

// Engine evaluates the static theory (optionally extended with a run's
// translated rules) against a RunState snapshot, producing gate literals.
// Nothing here is cached across ticks: Derive is re-run on the full
// current fact set every time RunState changes.
type Engine struct {
	theory *Theory
}

// NewEngine builds an Engine from the static bundle extended with any
// translated rules supplied by the plan translator for this run.
func NewEngine(translated ...Rule) *Engine {
	return &Engine{theory: StaticTheory().Extend(translated...)}
}

// Query exposes the raw theory for literals outside the per-task gate
// shorthand, e.g. a translated rule name.
func (e *Engine) Query(lit Literal, facts Facts) bool {
	return e.theory.Query(lit, facts)
}

// Derive computes GateLiterals for every known task plus the run-level
// run-paused literal. It fails closed (returns a PolicyContradiction) if
// state is nil, matching the engine's "internal errors are fatal to the
// tick" contract.
func (e *Engine) Derive(state *projector.RunState) (*types.RunGates, error) {
	if state == nil {
		return nil, types.NewError(types.ErrPolicyContradiction, "policy.Derive", fmt.Errorf("nil run state"))
	}

	gates := &types.RunGates{
		RunPaused: state.Paused,
		Tasks:     make(map[string]types.GateLiterals, len(state.Tasks)),
	}

	for taskID, ts := range state.Tasks {
		facts := factsFor(state, taskID, ts)
		if onlyReviewerIsImplementer(ts) {
			facts[reviewerEqualsImplLit(taskID)] = true
		}

		// Re-derived fresh every tick: the theory is never reused or
		// cached across fact sets, per the engine's non-monotonic
		// evaluation contract.
		perTaskTheory := e.theory.Extend(reviewableRule(taskID))
		reviewable := perTaskTheory.Query(reviewableLit(taskID), facts)

		closable := ts.ReviewApproved && ts.ChecksPassed && !ts.UnresolvedFindings && !ts.Closed && !state.Paused
		claimable := ts.Task.State == types.TaskStateReady &&
			!ts.InFlight && !state.Paused && state.SpecApproved && state.ChecksApproved &&
			!facts.Holds(blockedAmbiguityLit(taskID))

		gates.Tasks[taskID] = types.GateLiterals{
			Ready:            ts.Task.State == types.TaskStateReady || ts.Task.State == types.TaskStateRegistered,
			Claimable:        claimable,
			Reviewable:       reviewable,
			ReworkRequired:   ts.UnresolvedFindings,
			ChecksPassed:     ts.ChecksPassed,
			Closable:         closable,
			MergeReady:       closable && !state.MergeInProgress,
			NeedsHuman:       facts.Holds(openQuestionLit(taskID)),
			BlockedAmbiguity: facts.Holds(blockedAmbiguityLit(taskID)),
		}
	}

	return gates, nil
}

// onlyReviewerIsImplementer is the concrete non-monotonic case the engine
// must evaluate: the default "any available reviewer" rule for
// reviewable(T) is defeated when the single candidate reviewer identity
// equals the implementer's, since a task may never be reviewed by its own
// implementer.
func onlyReviewerIsImplementer(ts *projector.TaskState) bool {
	if ts.ImplementerActor == nil || ts.ReviewerActor == nil {
		return false
	}
	return *ts.ImplementerActor == *ts.ReviewerActor
}

// factsFor builds the Facts set a rule body can reference for one task,
// from the current RunState. Run-level facts (run-paused, spec_approved,
// checks_approved) are included unprefixed.
func factsFor(state *projector.RunState, taskID string, ts *projector.TaskState) Facts {
	facts := Facts{
		runPaused: state.Paused,
	}
	if state.SpecApproved {
		facts[specApproved] = true
	}
	if state.ChecksApproved {
		facts[checksApproved] = true
	}
	if ts.InFlight {
		facts[inFlightLit(taskID)] = true
	}
	if ts.Submitted {
		facts[submittedLit(taskID)] = true
	}
	if ts.ReviewApproved {
		facts[reviewApprovedLit(taskID)] = true
	}
	if ts.ChecksPassed {
		facts[checksPassedLit(taskID)] = true
	}
	if ts.UnresolvedFindings {
		facts[unresolvedFindingsLit(taskID)] = true
	}
	for qid, q := range state.OpenQuestions {
		_ = qid
		if q.TaskID != nil && *q.TaskID == taskID {
			facts[openQuestionLit(taskID)] = true
		}
	}
	if ts.Task.State == types.TaskStateReady {
		facts[readyLit(taskID)] = true
	}
	return facts
}
