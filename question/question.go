// Package question implements the human-input gate and pause/resume
// semantics (component 4.7). Opening a question appends
// human_input_requested (and run_paused if not already paused);
// answering appends human_input_provided plus the kind-specific
// resolution event, and run_resumed once the last open question clears.
package question

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pithecene-io/thence/types"
)

// Notifier optionally pushes a question to an external channel (e.g. a
// chat adapter) when one opens. Open ignores the returned error, so a
// failed notification never blocks or fails the event append.
type Notifier interface {
	Notify(ctx context.Context, q *types.Question) error
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

// Notify implements Notifier.
func (NoopNotifier) Notify(context.Context, *types.Question) error { return nil }

// Appender is the minimal slice of eventstore.Store the subsystem needs,
// kept as an interface so it can be tested without a real store.
type Appender interface {
	Append(ctx context.Context, runID string, event *types.Event) (int64, error)
}

// Subsystem opens and resolves questions against an event store.
type Subsystem struct {
	store    Appender
	notifier Notifier
}

// New creates a Subsystem. Pass NoopNotifier{} when no external channel
// is configured.
func New(store Appender, notifier Notifier) *Subsystem {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Subsystem{store: store, notifier: notifier}
}

// Open appends human_input_requested (and run_paused, unless the caller
// indicates the run is already paused) for a freshly raised question.
func (s *Subsystem) Open(ctx context.Context, runID string, kind types.QuestionKind, taskID *string, prompt string, alreadyPaused bool) (*types.Question, error) {
	q := &types.Question{
		QuestionID: uuid.New().String(),
		Kind:       kind,
		Prompt:     prompt,
		TaskID:     taskID,
	}

	payload := map[string]any{
		"question_id": q.QuestionID,
		"kind":        string(kind),
		"prompt":      prompt,
	}
	if _, err := s.store.Append(ctx, runID, &types.Event{
		RunID:   runID,
		Type:    types.EventHumanInputRequested,
		TaskID:  taskID,
		Payload: payload,
	}); err != nil {
		return nil, err
	}

	if !alreadyPaused {
		if _, err := s.store.Append(ctx, runID, &types.Event{
			RunID: runID,
			Type:  types.EventRunPaused,
		}); err != nil {
			return nil, err
		}
	}

	_ = s.notifier.Notify(ctx, q)
	return q, nil
}

// Answer appends human_input_provided plus the kind-specific resolution
// event. If lastOpen is true (the caller has already checked no other
// question remains open), run_resumed is appended too.
func (s *Subsystem) Answer(ctx context.Context, runID, questionID, answerText string, kind types.QuestionKind, taskID *string, lastOpen bool) error {
	if _, err := s.store.Append(ctx, runID, &types.Event{
		RunID:  runID,
		Type:   types.EventHumanInputProvided,
		TaskID: taskID,
		Payload: map[string]any{
			"question_id": questionID,
			"answer":      answerText,
		},
	}); err != nil {
		return err
	}

	resolution, err := resolutionEvent(kind)
	if err != nil {
		return err
	}
	if _, err := s.store.Append(ctx, runID, &types.Event{
		RunID:   runID,
		Type:    resolution,
		TaskID:  taskID,
		Payload: map[string]any{"question_id": questionID},
	}); err != nil {
		return err
	}

	if lastOpen {
		if _, err := s.store.Append(ctx, runID, &types.Event{RunID: runID, Type: types.EventRunResumed}); err != nil {
			return err
		}
	}
	return nil
}

func resolutionEvent(kind types.QuestionKind) (types.EventType, error) {
	switch kind {
	case types.QuestionSpecClarification:
		return types.EventSpecQuestionResolved, nil
	case types.QuestionChecksApproval:
		return types.EventChecksApproved, nil
	case types.QuestionReviewerFindingEscalation:
		return types.EventSpecQuestionResolved, nil
	default:
		return "", fmt.Errorf("question: unknown kind %q", kind)
	}
}
