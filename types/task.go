package types

import "fmt"

// TaskState is a task's position in the lifecycle named in the data model:
// registered -> ready -> claimed -> submitted -> reviewed -> checked ->
// merge-ready -> closed, or failed-terminal after attempt budget exhaustion.
type TaskState string

const (
	TaskStateRegistered   TaskState = "registered"
	TaskStateReady        TaskState = "ready"
	TaskStateClaimed      TaskState = "claimed"
	TaskStateSubmitted    TaskState = "submitted"
	TaskStateReviewed     TaskState = "reviewed"
	TaskStateChecked      TaskState = "checked"
	TaskStateMergeReady   TaskState = "merge_ready"
	TaskStateClosed       TaskState = "closed"
	TaskStateFailedTerm   TaskState = "failed_terminal"
)

// ActorRole enumerates the trust-boundary roles an event actor may hold.
type ActorRole string

const (
	ActorRoleImplementer ActorRole = "implementer"
	ActorRoleReviewer    ActorRole = "reviewer"
	ActorRoleSupervisor  ActorRole = "supervisor"
	ActorRoleHuman       ActorRole = "human"
)

// Task is a unit of work derived from plan translation. Mutated only by
// supervisor-emitted events, never by workers directly.
type Task struct {
	TaskID       string    `json:"id"`
	Objective    string    `json:"objective"`
	Acceptance   string    `json:"acceptance"`
	Dependencies []string  `json:"dependencies"`
	Checks       []string  `json:"checks,omitempty"`
	State        TaskState `json:"state"`
	Attempt      int       `json:"attempt"`
	Terminal     bool      `json:"terminal_failed"`
}

// Validate enforces that a freshly translated task carries a non-empty
// identity and no self-dependency.
func (t *Task) Validate() error {
	if t.TaskID == "" {
		return fmt.Errorf("task id must be non-empty")
	}
	for _, dep := range t.Dependencies {
		if dep == t.TaskID {
			return fmt.Errorf("task %q declares itself as a dependency", t.TaskID)
		}
	}
	return nil
}

// Attempt is one implementer+reviewer pass at a task, numbered from 1.
// At most one attempt per task is in-flight at any time.
type Attempt struct {
	TaskID            string `json:"task_id"`
	Number            int    `json:"attempt"`
	ImplementerActor  string `json:"implementer_actor,omitempty"`
	ReviewerActor     string `json:"reviewer_actor,omitempty"`
	ImplementerCapsule string `json:"implementer_capsule_path,omitempty"`
	ReviewerCapsule    string `json:"reviewer_capsule_path,omitempty"`
	WorktreePath      string `json:"worktree_path,omitempty"`
	Submitted         bool   `json:"submitted"`
	Approved          bool   `json:"approved"`
	ReworkRequired    bool   `json:"rework_required"`
	ChecksPassed      bool   `json:"checks_passed"`
	UnresolvedFinding bool   `json:"unresolved_finding"`
}

// Key identifies an attempt as (task_id, attempt) per the data model.
func (a *Attempt) Key() string {
	return fmt.Sprintf("%s#%d", a.TaskID, a.Number)
}

// Capsule is the task-scoped JSON context handed to implementer/reviewer
// subprocesses via CAPSULE_FILE.
type Capsule struct {
	Objective string          `json:"objective"`
	Acceptance string         `json:"acceptance"`
	Findings  []string        `json:"findings"`
	Checks    []string        `json:"checks"`
	SpecRef   CapsuleSpecRef  `json:"spec_ref"`
}

// CapsuleSpecRef pins the capsule to the frozen spec content.
type CapsuleSpecRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}
