// Package worker implements the Worker Orchestrator (component 4.5): it
// spawns one subprocess per scheduler dispatch decision, wires the
// subprocess adapter contract's environment variables, enforces a
// per-role hard timeout, and translates the subprocess's result file
// into the event the control loop should append.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pithecene-io/thence/ipc"
	"github.com/pithecene-io/thence/types"
)

// Role is the ROLE env var value passed to the subprocess. It is a
// distinct type from types.ActorRole because plan-translator and
// checks-proposer are adapter roles, not event-actor roles.
type Role string

const (
	RolePlanTranslator Role = "plan-translator"
	RoleImplementer    Role = "implementer"
	RoleReviewer       Role = "reviewer"
	RoleChecksProposer Role = "checks-proposer"
)

// Spec describes one subprocess dispatch: the adapter binary to run and
// the environment the subprocess contract requires.
type Spec struct {
	// AdapterCommand is the configured agent command (config [agent].command).
	AdapterCommand []string
	Role           Role
	Worktree       string
	PromptFile     string
	ResultFile     string
	CapsuleFile    string // empty for plan-translator/checks-proposer
	Timeout        time.Duration

	// OnProgress, if set, is called for every well-formed progress frame
	// the subprocess writes to stdout while it runs. Best-effort: a
	// malformed frame ends the stream silently and never fails Run.
	OnProgress func(*types.ProgressFrame)
}

// Result is the parsed, schema-validated content of RESULT_FILE for one
// subprocess role.
type Result struct {
	Role     Role
	ExitCode int
	Timeout  bool

	// Populated per role; zero value for roles that do not use the field.
	PlanTranslation *PlanTranslationResult
	Implementer     *ImplementerResult
	Reviewer        *ReviewerResult
	ChecksProposal  *ChecksProposalResult
}

// PlanTranslationResult is the plan-translator result file schema.
type PlanTranslationResult struct {
	SPL   string              `json:"spl"`
	Tasks []PlanTranslationTask `json:"tasks"`
}

// PlanTranslationTask is one task entry in the translator's task list.
type PlanTranslationTask struct {
	ID           string   `json:"id"`
	Objective    string   `json:"objective"`
	Acceptance   string   `json:"acceptance"`
	Dependencies []string `json:"dependencies"`
	Checks       []string `json:"checks"`
}

// ImplementerResult is the implementer result file schema.
type ImplementerResult struct {
	Submitted bool `json:"submitted"`
}

// ReviewerResult is the reviewer result file schema.
type ReviewerResult struct {
	Approved bool     `json:"approved"`
	Findings []string `json:"findings"`
}

// ChecksProposalResult is the checks-proposer result file schema.
type ChecksProposalResult struct {
	Commands  []string `json:"commands"`
	Rationale string   `json:"rationale"`
}

// ErrMissingResultFile is returned, wrapped in an AttemptFailure error,
// when the subprocess exited without writing a result file.
var ErrMissingResultFile = errors.New("worker: subprocess exited without a result file")

// Run spawns the subprocess described by spec, waits up to spec.Timeout,
// and returns the parsed result. A subprocess exceeding its deadline is
// sent SIGTERM, escalating to SIGKILL after a short grace period; Result
// is returned with Timeout=true and no schema fields populated, letting
// the caller translate this into attempt_interrupted.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.AdapterCommand) == 0 {
		return nil, types.NewError(types.ErrConfiguration, "worker.Run", errors.New("no agent command configured"))
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.AdapterCommand[0], spec.AdapterCommand[1:]...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
	cmd.Env = append(os.Environ(),
		"ROLE="+string(spec.Role),
		"WORKTREE="+spec.Worktree,
		"PROMPT_FILE="+spec.PromptFile,
		"RESULT_FILE="+spec.ResultFile,
		fmt.Sprintf("TIMEOUT_SECS=%d", int(spec.Timeout.Seconds())),
	)
	if spec.CapsuleFile != "" {
		cmd.Env = append(cmd.Env, "CAPSULE_FILE="+spec.CapsuleFile)
	}

	var err error
	if spec.OnProgress != nil {
		err = runWithProgress(cmd, spec.OnProgress)
	} else {
		err = cmd.Run()
	}

	timedOut := runCtx.Err() == context.DeadlineExceeded
	if timedOut {
		terminate(cmd)
		return &Result{Role: spec.Role, Timeout: true}, nil
	}

	exitCode := exitCodeOf(err)

	data, readErr := os.ReadFile(spec.ResultFile)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return &Result{Role: spec.Role, ExitCode: exitCode}, types.NewError(types.ErrAttemptFailure, "worker.Run", ErrMissingResultFile)
		}
		return nil, types.NewError(types.ErrAttemptFailure, "worker.Run", readErr)
	}

	result := &Result{Role: spec.Role, ExitCode: exitCode}
	if parseErr := parseResult(spec.Role, data, result); parseErr != nil {
		return result, types.NewError(types.ErrAttemptFailure, "worker.Run", parseErr)
	}
	return result, nil
}

// runWithProgress runs cmd to completion, decoding length-prefixed msgpack
// progress frames from its stdout as they arrive and handing each to
// onProgress. A malformed frame ends the reader goroutine; it never fails
// the subprocess run itself.
func runWithProgress(cmd *exec.Cmd, onProgress func(*types.ProgressFrame)) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		dec := ipc.NewFrameDecoder(stdout)
		for {
			frame, err := dec.ReadProgress()
			if err != nil {
				return
			}
			onProgress(frame)
		}
	}()

	waitErr := cmd.Wait()
	<-done
	return waitErr
}

func parseResult(role Role, data []byte, result *Result) error {
	switch role {
	case RolePlanTranslator:
		var r PlanTranslationResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		result.PlanTranslation = &r
	case RoleImplementer:
		var r ImplementerResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		result.Implementer = &r
	case RoleReviewer:
		var r ReviewerResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		result.Reviewer = &r
	case RoleChecksProposer:
		var r ChecksProposalResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		result.ChecksProposal = &r
	default:
		return fmt.Errorf("worker: unknown role %q", role)
	}
	return nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		return -1
	}
	return -1
}

func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
	}
}

// DefaultTimeoutFor returns the per-role hard deadline from RunConfig.
func DefaultTimeoutFor(role Role, cfg types.RunConfig) time.Duration {
	switch role {
	case RoleImplementer:
		return cfg.ImplementerTimeout
	case RoleReviewer:
		return cfg.ReviewerTimeout
	case RoleChecksProposer:
		return cfg.ChecksTimeout
	default:
		return cfg.ImplementerTimeout
	}
}

// ResultFilePath computes the canonical result-file path for an attempt,
// matching the on-disk layout in the external interfaces section.
func ResultFilePath(runRoot, taskID string, attempt int, role Role) string {
	return filepath.Join(runRoot, "capsules", taskID, fmt.Sprintf("attempt%d", attempt), string(role)+"_result.json")
}
