package types

import "errors"

// ContractVersion is the wire-format version of the event envelope. It
// moves in lockstep with Version.
const ContractVersion = Version

// EventType is the closed set of event kinds the supervisor may append.
// Only the supervisor's control loop appends events; worker subprocesses
// never write to the event store directly.
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventPlanTranslated EventType = "plan_translated"
	EventPlanValidated  EventType = "plan_validated"
	EventTaskRegistered EventType = "task_registered"
	EventSpecApproved   EventType = "spec_approved"
	EventChecksApproved EventType = "checks_approved"

	EventTaskClaimed       EventType = "task_claimed"
	EventWorkSubmitted     EventType = "work_submitted"
	EventReviewRequested   EventType = "review_requested"
	EventReviewApproved    EventType = "review_approved"
	EventReviewFoundIssues EventType = "review_found_issues"
	EventChecksReported    EventType = "checks_reported"

	EventMergeSucceeded EventType = "merge_succeeded"
	EventMergeConflict  EventType = "merge_conflict"
	EventTaskClosed     EventType = "task_closed"
	EventTaskFailedTerm EventType = "task_failed_terminal"

	EventHumanInputRequested  EventType = "human_input_requested"
	EventHumanInputProvided   EventType = "human_input_provided"
	EventSpecQuestionResolved EventType = "spec_question_resolved"
	EventRunPaused            EventType = "run_paused"
	EventRunResumed           EventType = "run_resumed"

	EventAttemptInterrupted EventType = "attempt_interrupted"

	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
	EventRunCancelled EventType = "run_cancelled"
)

// IsTerminalRun reports whether this event type is one of the three
// terminal run events; at most one may appear in a valid event sequence.
func (e EventType) IsTerminalRun() bool {
	return e == EventRunCompleted || e == EventRunFailed || e == EventRunCancelled
}

// Event is a single immutable record in a run's append-only log.
// Identity is (RunID, Seq); Seq is assigned monotonically, gaplessly, at
// append time and is never reused or reassigned.
type Event struct {
	RunID     string         `json:"run_id" msgpack:"run_id"`
	Seq       int64          `json:"seq" msgpack:"seq"`
	Type      EventType      `json:"type" msgpack:"type"`
	Ts        string         `json:"ts" msgpack:"ts"`
	TaskID    *string        `json:"task_id,omitempty" msgpack:"task_id,omitempty"`
	ActorRole *ActorRole     `json:"actor_role,omitempty" msgpack:"actor_role,omitempty"`
	ActorID   *string        `json:"actor_id,omitempty" msgpack:"actor_id,omitempty"`
	Attempt   *int           `json:"attempt,omitempty" msgpack:"attempt,omitempty"`
	Payload   map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
	DedupeKey *string        `json:"dedupe_key,omitempty" msgpack:"dedupe_key,omitempty"`
}

// Validate checks the envelope-level invariants that do not require the
// rest of the log to evaluate: a non-empty run id and event type.
func (e *Event) Validate() error {
	if e.RunID == "" {
		return errors.New("event run_id must be non-empty")
	}
	if e.Type == "" {
		return errors.New("event type must be non-empty")
	}
	return nil
}

// PayloadString reads a string field from the payload, returning "" if
// absent or of the wrong type.
func (e *Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// PayloadBool reads a bool field from the payload.
func (e *Event) PayloadBool(key string) bool {
	if e.Payload == nil {
		return false
	}
	b, _ := e.Payload[key].(bool)
	return b
}
