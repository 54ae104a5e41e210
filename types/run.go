// Package types defines the core domain types shared across the supervisor:
// runs, tasks, attempts, events, questions, leases and the gate literals the
// policy engine derives for them.
package types

import (
	"errors"
	"fmt"
	"time"
)

// RunStatus is the terminal-or-running status of a run. A run carries
// exactly one terminal status event over its lifetime.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status ends the run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunConfig is the configuration snapshot frozen at run start: worker/reviewer
// pool sizes, timeouts and the partial-completion flag. Stored verbatim on
// the Run so a resume uses the same limits the original run was dispatched
// under, even if the on-disk config file has since changed.
type RunConfig struct {
	Workers                int           `json:"workers"`
	Reviewers              int           `json:"reviewers"`
	MaxAttempts            int           `json:"max_attempts"`
	AllowPartialCompletion bool          `json:"allow_partial_completion"`
	ImplementerTimeout     time.Duration `json:"implementer_timeout"`
	ReviewerTimeout        time.Duration `json:"reviewer_timeout"`
	ChecksTimeout          time.Duration `json:"checks_timeout"`
	LeaseTTL               time.Duration `json:"lease_ttl"`
}

// DefaultRunConfig mirrors the defaults named in the external interfaces:
// max_attempts=3, implementer 45m, reviewer 20m, each check command 10m.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Workers:                1,
		Reviewers:              1,
		MaxAttempts:            3,
		AllowPartialCompletion: false,
		ImplementerTimeout:     45 * time.Minute,
		ReviewerTimeout:        20 * time.Minute,
		ChecksTimeout:          10 * time.Minute,
		LeaseTTL:               2 * time.Minute,
	}
}

// Run is the root identity a supervisor process drives to completion.
type Run struct {
	RunID             string    `json:"run_id"`
	SpecPath          string    `json:"spec_path"`
	SpecSHA256        string    `json:"spec_sha256"`
	TranslatedPlanSHA string    `json:"translated_plan_sha256"`
	Config            RunConfig `json:"config"`
	CreatedAt         time.Time `json:"created_at"`
	Status            RunStatus `json:"status"`
}

// Validate enforces the Run invariants from the data model: non-empty
// identity and a known status.
func (r *Run) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.SpecSHA256 == "" {
		return errors.New("spec_sha256 must be present (frozen spec content hash)")
	}
	switch r.Status {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
	default:
		return fmt.Errorf("invalid run status %q", r.Status)
	}
	return nil
}
