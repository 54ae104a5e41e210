package reader

import (
	"time"

	"github.com/pithecene-io/thence/types"
)

// TaskSummary is the read-side view of a single task's progress.
type TaskSummary struct {
	TaskID             string          `json:"task_id"`
	Objective          string          `json:"objective"`
	State              types.TaskState `json:"state"`
	Attempt            int             `json:"attempt"`
	ImplementerActor   *string         `json:"implementer_actor,omitempty"`
	ReviewerActor      *string         `json:"reviewer_actor,omitempty"`
	InFlight           bool            `json:"in_flight"`
	Submitted          bool            `json:"submitted"`
	ReviewApproved     bool            `json:"review_approved"`
	UnresolvedFindings bool            `json:"unresolved_findings"`
	ChecksPassed       bool            `json:"checks_passed"`
	Closed             bool            `json:"closed"`
	FailedTerminal     bool            `json:"failed_terminal"`
}

// QuestionSummary is the read-side view of an open or answered question.
type QuestionSummary struct {
	QuestionID string     `json:"question_id"`
	Kind       string     `json:"kind"`
	TaskID     *string    `json:"task_id,omitempty"`
	Prompt     string     `json:"prompt"`
	OpenedAt   time.Time  `json:"opened_at"`
	Answer     *string    `json:"answer,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// RunSummary is the read-side view of a run assembled from its projected
// state: current status, per-task progress, and any open questions.
type RunSummary struct {
	RunID           string            `json:"run_id"`
	Status          types.RunStatus   `json:"status"`
	PlanHash        string            `json:"plan_hash"`
	PlanValidated   bool              `json:"plan_validated"`
	SpecApproved    bool              `json:"spec_approved"`
	ChecksApproved  bool              `json:"checks_approved"`
	Paused          bool              `json:"paused"`
	MergeInProgress bool              `json:"merge_in_progress"`
	LastSeq         int64             `json:"last_seq"`
	Tasks           []TaskSummary     `json:"tasks"`
	OpenQuestions   []QuestionSummary `json:"open_questions"`
	FailureReason   *string           `json:"failure_reason,omitempty"`
}
