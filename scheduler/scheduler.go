// Package scheduler chooses the next runnable work per tick (component
// 4.4). It is stateless: every call to Decide takes the full current
// RunState, the gate literals the policy engine just derived, and pool
// occupancy, and returns a bounded set of dispatch decisions. It holds no
// memory of previous ticks — retry bookkeeping lives in RunState's
// attempt counters, not in the scheduler itself.
package scheduler

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/pithecene-io/thence/projector"
	"github.com/pithecene-io/thence/types"
)

// DecisionKind discriminates the dispatch decisions the scheduler emits.
type DecisionKind string

const (
	DecisionClaim              DecisionKind = "claim"
	DecisionReview             DecisionKind = "review"
	DecisionChecks             DecisionKind = "checks"
	DecisionMerge              DecisionKind = "merge"
	DecisionTaskFailedTerminal DecisionKind = "task_failed_terminal"
	DecisionRunFailed          DecisionKind = "run_failed"
)

// Decision is one unit of work the control loop must act on this tick,
// either by spawning a worker subprocess (Worker Orchestrator) or by
// appending a terminal event directly.
type Decision struct {
	Kind      DecisionKind
	TaskID    string
	Attempt   int
	Actor     string // implementer/reviewer actor id assigned to this dispatch
	Reason    string // human-readable justification; carried onto the event payload for task_failed_terminal and run_failed
}

// Occupancy reports how many worker/reviewer slots are currently in use
// and the pool-size limits from RunConfig.
type Occupancy struct {
	Config            types.RunConfig
	WorkersInUse      int
	ReviewersInUse    int
	MergeInFlight     bool
}

// Decide computes the bounded dispatch set for this tick. It never
// dispatches while run-paused (gates.RunPaused), respects worker/reviewer
// pool limits, and serializes merges to at most one in flight run-wide.
func Decide(state *projector.RunState, gates *types.RunGates, occ Occupancy) []Decision {
	if gates.RunPaused {
		return nil
	}

	var decisions []Decision

	// Claimable tasks, ordered by fewest declared dependencies, then
	// lexicographic task_id.
	claimable := claimableTaskIDs(state, gates)
	workersFree := occ.Config.Workers - occ.WorkersInUse
	for _, taskID := range claimable {
		if workersFree <= 0 {
			break
		}
		ts := state.Tasks[taskID]
		if ts.Attempt >= occ.Config.MaxAttempts {
			decisions = append(decisions, failTerminal(taskID, ts, occ))
			continue
		}
		decisions = append(decisions, Decision{
			Kind:    DecisionClaim,
			TaskID:  taskID,
			Attempt: ts.Attempt + 1,
			Reason:  "claimable and worker slot available",
		})
		workersFree--
	}

	// Reviewable attempts, same tie-break.
	reviewersFree := occ.Config.Reviewers - occ.ReviewersInUse
	for _, taskID := range sortedTaskIDs(gates, func(g types.GateLiterals) bool { return g.Reviewable }) {
		if reviewersFree <= 0 {
			break
		}
		ts := state.Tasks[taskID]
		reviewer := distinctReviewer(ts, occ.Config.Reviewers)
		decisions = append(decisions, Decision{
			Kind:    DecisionReview,
			TaskID:  taskID,
			Attempt: ts.Attempt,
			Actor:   reviewer,
			Reason:  "submitted and awaiting review",
		})
		reviewersFree--
	}

	// Checks run one at a time per attempt; dispatch whenever an attempt
	// has been approved but not yet checked (ChecksPassed false and not
	// already rework-required).
	for _, taskID := range sortedTaskIDs(gates, func(g types.GateLiterals) bool {
		return !g.ChecksPassed && !g.ReworkRequired && g.Closable == false && g.Reviewable == false
	}) {
		ts := state.Tasks[taskID]
		if !ts.ReviewApproved || ts.ChecksPassed {
			continue
		}
		decisions = append(decisions, Decision{Kind: DecisionChecks, TaskID: taskID, Attempt: ts.Attempt, Reason: "review approved, checks pending"})
	}

	// Merge queue: strictly serial, at most one in flight run-wide.
	if !occ.MergeInFlight {
		for _, taskID := range sortedMergeReady(state, gates) {
			decisions = append(decisions, Decision{Kind: DecisionMerge, TaskID: taskID, Attempt: state.Tasks[taskID].Attempt, Reason: "merge-ready"})
			break // one at a time
		}
	}

	// Run-level failure: if any task is failed-terminal and the run does
	// not allow partial completion, fail the run once per tick's worth of
	// new terminal failures (the control loop is responsible for not
	// re-emitting run_failed if one already exists).
	if !occ.Config.AllowPartialCompletion {
		for _, d := range decisions {
			if d.Kind == DecisionTaskFailedTerminal {
				decisions = append(decisions, Decision{Kind: DecisionRunFailed, TaskID: d.TaskID, Reason: "required task failed-terminal, partial completion disallowed"})
				break
			}
		}
	}

	return decisions
}

func failTerminal(taskID string, ts *projector.TaskState, occ Occupancy) Decision {
	return Decision{
		Kind:    DecisionTaskFailedTerminal,
		TaskID:  taskID,
		Attempt: ts.Attempt,
		Reason:  "retry budget exhausted",
	}
}

// claimableTaskIDs returns claimable task ids ordered by fewest declared
// dependencies (closed or not), then lexicographically.
func claimableTaskIDs(state *projector.RunState, gates *types.RunGates) []string {
	ids := sortedTaskIDs(gates, func(g types.GateLiterals) bool { return g.Claimable })
	sort.SliceStable(ids, func(i, j int) bool {
		di := len(state.Tasks[ids[i]].Task.Dependencies)
		dj := len(state.Tasks[ids[j]].Task.Dependencies)
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func sortedMergeReady(state *projector.RunState, gates *types.RunGates) []string {
	ids := sortedTaskIDs(gates, func(g types.GateLiterals) bool { return g.MergeReady })
	// closable-first-in-time by seq of review_approved is approximated here
	// by lexicographic task_id since RunState does not retain per-event
	// seq after folding; the control loop may re-order using the raw log
	// when exact seq ordering among ties matters.
	sort.Strings(ids)
	return ids
}

func sortedTaskIDs(gates *types.RunGates, pred func(types.GateLiterals) bool) []string {
	var ids []string
	for taskID, g := range gates.Tasks {
		if pred(g) {
			ids = append(ids, taskID)
		}
	}
	sort.Strings(ids)
	return ids
}

// distinctReviewer picks a reviewer identifier from the --reviewers pool
// (sized poolSize, identities "reviewer-0".."reviewer-(poolSize-1)"),
// deterministically sharded by task id so the same task always lands on
// the same reviewer slot across ticks. Guaranteed to differ from the
// attempt's implementer actor: implementer and reviewer identities are
// drawn from disjoint "implementer"/"reviewer-N" namespaces, but the pool
// is still walked to the next slot on a collision in case the caller
// assigned an implementer actor out of that namespace.
func distinctReviewer(ts *projector.TaskState, poolSize int) string {
	if poolSize < 1 {
		poolSize = 1
	}
	start := reviewerPoolIndex(ts.Task.TaskID, poolSize)
	for i := 0; i < poolSize; i++ {
		candidate := fmt.Sprintf("reviewer-%d", (start+i)%poolSize)
		if ts.ImplementerActor == nil || candidate != *ts.ImplementerActor {
			return candidate
		}
	}
	return fmt.Sprintf("reviewer-%d", start)
}

// reviewerPoolIndex deterministically shards a task id across a reviewer
// pool of the given size.
func reviewerPoolIndex(taskID string, poolSize int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return int(h.Sum32()) % poolSize
}
