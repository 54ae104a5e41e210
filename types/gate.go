package types

// GateLiterals is the derived boolean fact set the policy engine produces
// for one (task, latest-attempt) pair on a given tick. None of these are
// stored; they are recomputed from scratch every tick from RunState plus
// the rule theory, never cached across facts.
type GateLiterals struct {
	Ready             bool `json:"ready"`
	Claimable         bool `json:"claimable"`
	Reviewable        bool `json:"reviewable"`
	ReworkRequired    bool `json:"rework_required"`
	ChecksPassed      bool `json:"checks_passed"`
	Closable          bool `json:"closable"`
	MergeReady        bool `json:"merge_ready"`
	NeedsHuman        bool `json:"needs_human"`
	BlockedAmbiguity  bool `json:"blocked_ambiguity"`
}

// RunGates carries the run-level literal alongside the per-task map.
type RunGates struct {
	RunPaused bool                    `json:"run_paused"`
	Tasks     map[string]GateLiterals `json:"tasks"`
}
