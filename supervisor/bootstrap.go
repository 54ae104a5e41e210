package supervisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pithecene-io/thence/types"
	"github.com/pithecene-io/thence/worker"
)

// Bootstrap drives a fresh run from run_started through either
// spec_approved+checks_approved (ready for the tick loop) or a paused
// state awaiting a spec_clarification / checks_approval answer. It is a
// no-op if the run already has events (resume picks up from Run instead).
func (l *Loop) Bootstrap(ctx context.Context) error {
	state, err := l.projectedState(ctx)
	if err != nil {
		return err
	}
	if state != nil {
		return nil // already bootstrapped; Run resumes from the existing log
	}

	if _, err := l.append(ctx, &types.Event{
		Type:    types.EventRunStarted,
		Payload: map[string]any{"spec_path": l.cfg.SpecPath, "spec_sha256": l.cfg.SpecSHA256},
	}); err != nil {
		return err
	}
	l.cfg.Collector.IncRunStarted()

	specData, err := os.ReadFile(l.cfg.SpecPath)
	if err != nil {
		return types.NewError(types.ErrConfiguration, "supervisor.Bootstrap", fmt.Errorf("read spec: %w", err))
	}
	promptFile := l.layout.promptFile("plan", 0, worker.RolePlanTranslator)
	if err := os.MkdirAll(filepath.Dir(promptFile), 0o755); err != nil {
		return types.NewError(types.ErrConfiguration, "supervisor.Bootstrap", err)
	}
	if err := os.WriteFile(promptFile, translatorPrompt(specData), 0o644); err != nil {
		return types.NewError(types.ErrConfiguration, "supervisor.Bootstrap", err)
	}

	result, runErr := l.worker.Run(ctx, worker.Spec{
		AdapterCommand: l.cfg.AgentCommand,
		Role:           worker.RolePlanTranslator,
		PromptFile:     promptFile,
		ResultFile:     l.layout.resultFile("plan", 0, worker.RolePlanTranslator),
		Timeout:        worker.DefaultTimeoutFor(worker.RolePlanTranslator, l.cfg.RunConfig),
	})
	if runErr != nil || (result != nil && result.Timeout) || result == nil || result.PlanTranslation == nil {
		return l.openSpecQuestion(ctx, translationFailureReason(runErr, result))
	}
	plan := result.PlanTranslation

	// plan.SPL is archived for audit but never parsed back into policy.Rule
	// values; policy.NewEngine always runs on the static bundle alone, so a
	// syntactically invalid translated rule program cannot reach the
	// pause-with-a-spec-question path this would otherwise feed.
	if err := os.WriteFile(l.layout.planFile(), []byte(plan.SPL), 0o644); err != nil {
		return types.NewError(types.ErrConfiguration, "supervisor.Bootstrap", err)
	}
	translatedJSON, err := json.MarshalIndent(plan.Tasks, "", "  ")
	if err == nil {
		_ = os.WriteFile(l.layout.translatedPlanFile(), translatedJSON, 0o644)
	}

	planHash := sha256Hex(plan.SPL)
	if _, err := l.append(ctx, &types.Event{
		Type:    types.EventPlanTranslated,
		Payload: map[string]any{"plan_sha256": planHash},
	}); err != nil {
		return err
	}

	if err := validateTasks(plan.Tasks); err != nil {
		return l.openSpecQuestion(ctx, fmt.Sprintf("translated plan invalid: %v", err))
	}
	if _, err := l.append(ctx, &types.Event{Type: types.EventPlanValidated}); err != nil {
		return err
	}

	for _, t := range plan.Tasks {
		taskID := t.ID
		deps := make([]any, len(t.Dependencies))
		for i, d := range t.Dependencies {
			deps[i] = d
		}
		checks := make([]any, len(t.Checks))
		for i, c := range t.Checks {
			checks[i] = c
		}
		if _, err := l.append(ctx, &types.Event{
			Type:   types.EventTaskRegistered,
			TaskID: &taskID,
			Payload: map[string]any{
				"objective":    t.Objective,
				"acceptance":   t.Acceptance,
				"dependencies": deps,
				"checks":       checks,
			},
		}); err != nil {
			return err
		}
	}

	if _, err := l.append(ctx, &types.Event{Type: types.EventSpecApproved}); err != nil {
		return err
	}

	return l.resolveChecksGate(ctx)
}

// resolveChecksGate appends checks_approved directly when the CLI or
// config supplied check commands, or opens a checks_approval question
// when neither did, so an unconfigured checks gate pauses for a human
// decision rather than silently passing the run through.
func (l *Loop) resolveChecksGate(ctx context.Context) error {
	if len(l.cfg.CheckCommands) > 0 {
		_, err := l.append(ctx, &types.Event{Type: types.EventChecksApproved})
		return err
	}
	_, err := l.questions.Open(ctx, l.cfg.RunID, types.QuestionChecksApproval, nil,
		"no check commands configured via --checks or [checks].commands; provide commands or accept none", false)
	return err
}

func (l *Loop) openSpecQuestion(ctx context.Context, reason string) error {
	_, err := l.questions.Open(ctx, l.cfg.RunID, types.QuestionSpecClarification, nil, reason, false)
	return err
}

func translationFailureReason(err error, result *worker.Result) string {
	switch {
	case err != nil:
		return fmt.Sprintf("plan translation failed: %v", err)
	case result != nil && result.Timeout:
		return "plan translation timed out"
	default:
		return "plan translation returned no tasks"
	}
}

// validateTasks rejects dependency cycles, self-references, and dangling
// dependency references in a freshly translated plan.
func validateTasks(tasks []worker.PlanTranslationTask) error {
	byID := make(map[string]worker.PlanTranslationTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(tasks))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle involving %q", id)
		}
		state[id] = visiting
		for _, dep := range byID[id].Dependencies {
			if dep == id {
				return fmt.Errorf("task %q depends on itself", id)
			}
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("task %q depends on unknown task %q", id, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("translated task missing id")
		}
		if err := visit(t.ID); err != nil {
			return err
		}
	}
	return nil
}

func translatorPrompt(spec []byte) []byte {
	header := "Translate the following specification into an SPL rule file and a JSON task list.\n\n"
	return append([]byte(header), spec...)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
