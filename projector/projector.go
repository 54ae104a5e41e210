// Package projector implements the deterministic fold from an ordered
// event stream to RunState (component 4.2). Project is a pure function:
// projecting the same prefix of events twice yields identical state, and
// an event whose precondition does not hold against the state built so
// far fails the whole projection closed rather than silently skipping it.
package projector

import (
	"fmt"

	"github.com/pithecene-io/thence/types"
)

// TaskState is the per-task view folded from events.
type TaskState struct {
	Task               types.Task
	Attempt            int
	ImplementerActor   *string
	ReviewerActor      *string
	InFlight           bool
	Submitted          bool
	ReviewApproved     bool
	UnresolvedFindings bool
	ChecksPassed       bool
	Closed             bool
	FailedTerminal     bool
}

// RunState is the immutable snapshot the projector produces from an event
// prefix. It is always rebuilt from seq 1; nothing here is mutated after
// Project returns.
type RunState struct {
	RunID            string
	Status           types.RunStatus
	PlanHash         string
	PlanValidated    bool
	SpecApproved     bool
	ChecksApproved   bool
	Paused           bool
	Tasks            map[string]*TaskState
	OpenQuestions    map[string]*types.Question
	MergeInProgress  bool
	FailureDetail    *types.FailureDetail
	LastSeq          int64
}

func newRunState(runID string) *RunState {
	return &RunState{
		RunID:         runID,
		Status:        types.RunStatusRunning,
		Tasks:         make(map[string]*TaskState),
		OpenQuestions: make(map[string]*types.Question),
	}
}

// precondition wraps a failed invariant check into a PolicyContradiction,
// matching the "fail closed" rule from the component's transition table.
func precondition(event *types.Event, ok bool, msg string) error {
	if ok {
		return nil
	}
	return types.NewError(types.ErrPolicyContradiction, "projector.Project",
		fmt.Errorf("event seq=%d type=%s: %s", event.Seq, event.Type, msg))
}

// Project folds events, which must already be ordered by seq ascending
// (as returned by eventstore.Store.LoadSince), into a RunState. It returns
// a PolicyContradiction error the moment an event's precondition is
// violated, leaving the returned state as the last known-good snapshot.
func Project(events []*types.Event) (*RunState, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("projector: empty event stream")
	}

	state := newRunState(events[0].RunID)

	for _, ev := range events {
		if err := apply(state, ev); err != nil {
			return state, err
		}
		state.LastSeq = ev.Seq
	}
	recomputeReadiness(state)
	return state, nil
}

// recomputeReadiness derives ready(T) from registered(T) and dependency
// closure: a registered task with no open (non-closed) dependency becomes
// ready. This is a pure re-derivation from the folded state, not a separate
// event, so it is recomputed from scratch on every Project call rather than
// toggled once.
func recomputeReadiness(s *RunState) {
	changed := true
	for changed {
		changed = false
		for _, ts := range s.Tasks {
			if ts.Task.State != types.TaskStateRegistered {
				continue
			}
			if dependenciesClosed(s, ts.Task.Dependencies) {
				ts.Task.State = types.TaskStateReady
				changed = true
			}
		}
	}
}

func dependenciesClosed(s *RunState, deps []string) bool {
	for _, dep := range deps {
		dts, ok := s.Tasks[dep]
		if !ok || dts.Task.State != types.TaskStateClosed {
			return false
		}
	}
	return true
}

func apply(s *RunState, ev *types.Event) error {
	switch ev.Type {
	case types.EventRunStarted:
		s.Status = types.RunStatusRunning

	case types.EventPlanTranslated:
		if err := precondition(ev, s.Status == types.RunStatusRunning, "run must be running"); err != nil {
			return err
		}
		s.PlanHash = ev.PayloadString("plan_sha256")

	case types.EventPlanValidated:
		if err := precondition(ev, s.PlanHash != "", "plan must be translated first"); err != nil {
			return err
		}
		s.PlanValidated = true

	case types.EventTaskRegistered:
		if err := precondition(ev, s.Status == types.RunStatusRunning && s.PlanValidated, "run running and plan validated"); err != nil {
			return err
		}
		if ev.TaskID == nil {
			return precondition(ev, false, "task_registered missing task_id")
		}
		s.Tasks[*ev.TaskID] = &TaskState{Task: types.Task{
			TaskID:       *ev.TaskID,
			Objective:    ev.PayloadString("objective"),
			Acceptance:   ev.PayloadString("acceptance"),
			Dependencies: payloadStringSlice(ev, "dependencies"),
			Checks:       payloadStringSlice(ev, "checks"),
			State:        types.TaskStateRegistered,
		}}

	case types.EventSpecApproved:
		if err := precondition(ev, !s.hasUnresolvedQuestionsOfKind(types.QuestionSpecClarification), "no unresolved spec questions"); err != nil {
			return err
		}
		s.SpecApproved = true

	case types.EventChecksApproved:
		s.ChecksApproved = true

	case types.EventTaskClaimed:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, !ts.InFlight, "task must not already be in-flight to be claimed"); err != nil {
			return err
		}
		ts.InFlight = true
		ts.Attempt++
		actor := ev.ActorID
		ts.ImplementerActor = actor
		ts.Task.State = types.TaskStateClaimed

	case types.EventWorkSubmitted:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, ts.InFlight && ts.Attempt == derefInt(ev.Attempt, ts.Attempt), "task claimed by same attempt"); err != nil {
			return err
		}
		ts.Submitted = true
		ts.Task.State = types.TaskStateSubmitted

	case types.EventReviewApproved, types.EventReviewFoundIssues:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, ts.Submitted, "attempt must be submitted before review"); err != nil {
			return err
		}
		reviewer := ev.ActorID
		if err := precondition(ev, reviewer == nil || ts.ImplementerActor == nil || *reviewer != *ts.ImplementerActor,
			"reviewer actor must differ from implementer actor"); err != nil {
			return err
		}
		ts.ReviewerActor = reviewer
		if ev.Type == types.EventReviewApproved {
			ts.ReviewApproved = true
			ts.UnresolvedFindings = false
			ts.Task.State = types.TaskStateReviewed
		} else {
			ts.ReviewApproved = false
			ts.UnresolvedFindings = true
			ts.InFlight = false
			ts.Submitted = false
			ts.Task.State = types.TaskStateReady
		}

	case types.EventChecksReported:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, ts.ReviewApproved, "checks reported only after review approval"); err != nil {
			return err
		}
		ts.ChecksPassed = ev.PayloadBool("passed")
		if ts.ChecksPassed {
			ts.Task.State = types.TaskStateChecked
		}

	case types.EventMergeSucceeded:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, s.closable(ts), "task must be closable to merge"); err != nil {
			return err
		}
		ts.InFlight = false
		ts.Task.State = types.TaskStateMergeReady

	case types.EventTaskClosed:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, ts.Task.State == types.TaskStateMergeReady, "task must have a prior merge_succeeded"); err != nil {
			return err
		}
		ts.Closed = true
		ts.Task.State = types.TaskStateClosed

	case types.EventMergeConflict:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, s.closable(ts), "task must have been closable at dispatch"); err != nil {
			return err
		}
		ts.InFlight = false
		ts.Submitted = false
		ts.ReviewApproved = false
		ts.ChecksPassed = false
		ts.Task.State = types.TaskStateReady

	case types.EventTaskFailedTerm:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		if err := precondition(ev, ts.Task.State != types.TaskStateClosed, "only a non-closed task can fail terminally"); err != nil {
			return err
		}
		ts.FailedTerminal = true
		ts.InFlight = false
		ts.Task.State = types.TaskStateFailedTerm

	case types.EventHumanInputRequested:
		qid := ev.PayloadString("question_id")
		if err := precondition(ev, qid != "", "human_input_requested missing question_id"); err != nil {
			return err
		}
		s.OpenQuestions[qid] = &types.Question{
			QuestionID: qid,
			Kind:       types.QuestionKind(ev.PayloadString("kind")),
			Prompt:     ev.PayloadString("prompt"),
			TaskID:     ev.TaskID,
		}
		s.Paused = true

	case types.EventHumanInputProvided:
		qid := ev.PayloadString("question_id")
		if err := precondition(ev, s.OpenQuestions[qid] != nil, "human_input_provided references an unopened question"); err != nil {
			return err
		}
		delete(s.OpenQuestions, qid)
		s.Paused = len(s.OpenQuestions) > 0

	case types.EventSpecQuestionResolved:
		// Resolution detail only; human_input_provided already closed the question.

	case types.EventRunPaused:
		s.Paused = true

	case types.EventRunResumed:
		if err := precondition(ev, len(s.OpenQuestions) == 0, "run_resumed requires no open questions"); err != nil {
			return err
		}
		s.Paused = false

	case types.EventAttemptInterrupted:
		ts, err := s.requireTask(ev)
		if err != nil {
			return err
		}
		ts.InFlight = false
		ts.Submitted = false

	default:
		if ev.Type.IsTerminalRun() {
			if err := precondition(ev, !s.hasInFlightAttempts() && len(s.OpenQuestions) == 0,
				"terminal run event requires no in-flight attempts and no open questions"); err != nil {
				return err
			}
			if err := precondition(ev, !s.Status.IsTerminal(), "at most one terminal run event per run"); err != nil {
				return err
			}
			s.Status = terminalStatusFor(ev.Type)
			if ev.Type != types.EventRunCompleted {
				reason := ev.PayloadString("reason")
				s.FailureDetail = &types.FailureDetail{Reason: reason, TaskID: ev.TaskID}
			}
		}
	}

	return nil
}

func terminalStatusFor(t types.EventType) types.RunStatus {
	switch t {
	case types.EventRunCompleted:
		return types.RunStatusCompleted
	case types.EventRunFailed:
		return types.RunStatusFailed
	case types.EventRunCancelled:
		return types.RunStatusCancelled
	default:
		return types.RunStatusFailed
	}
}

func (s *RunState) requireTask(ev *types.Event) (*TaskState, error) {
	if ev.TaskID == nil {
		return nil, precondition(ev, false, "event requires task_id")
	}
	ts, ok := s.Tasks[*ev.TaskID]
	if !ok {
		return nil, precondition(ev, false, fmt.Sprintf("unknown task %q", *ev.TaskID))
	}
	return ts, nil
}

func (s *RunState) closable(ts *TaskState) bool {
	return ts.ReviewApproved && ts.ChecksPassed && !ts.UnresolvedFindings && !s.Paused
}

func (s *RunState) hasInFlightAttempts() bool {
	for _, ts := range s.Tasks {
		if ts.InFlight {
			return true
		}
	}
	return false
}

func (s *RunState) hasUnresolvedQuestionsOfKind(kind types.QuestionKind) bool {
	for _, q := range s.OpenQuestions {
		if q.Kind == kind {
			return true
		}
	}
	return false
}

func derefInt(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// payloadStringSlice reads a []string field from an event payload. JSON/TOML
// decoding round-trips arrays as []any, so each element is type-asserted
// individually; non-string elements are skipped rather than failing the
// whole projection.
func payloadStringSlice(ev *types.Event, key string) []string {
	if ev.Payload == nil {
		return nil
	}
	raw, ok := ev.Payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
