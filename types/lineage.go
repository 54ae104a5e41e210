package types

import (
	"errors"
	"fmt"
)

// RunContext carries the identity fields every log line and metrics
// dimension is tagged with for a given run.
type RunContext struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// TaskID is the task currently in focus, if any.
	TaskID *string
	// Attempt is the attempt number in focus, if any.
	Attempt *int
}

// Validate checks that a run context carries a usable identity.
func (r *RunContext) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	return nil
}

// FailureDetail describes why a run ended other than success, carried on
// the run_failed / run_cancelled event payload.
type FailureDetail struct {
	Reason   string  `json:"reason"`
	TaskID   *string `json:"task_id,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

func (f *FailureDetail) String() string {
	if f.TaskID != nil {
		return fmt.Sprintf("%s (task=%s, kind=%s)", f.Reason, *f.TaskID, f.ErrorKind)
	}
	return fmt.Sprintf("%s (kind=%s)", f.Reason, f.ErrorKind)
}
