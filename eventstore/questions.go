package eventstore

import (
	"context"

	"github.com/pithecene-io/thence/types"
)

// ListUnresolvedQuestions folds human_input_requested/human_input_provided
// events for runID into the set of still-open questions. It is a pure
// read-side projection kept local to the store because both the CLI's
// questions command and the projector need it without pulling in the full
// RunState fold.
func (s *Store) ListUnresolvedQuestions(ctx context.Context, runID string) ([]*types.Question, error) {
	events, err := s.LoadSince(ctx, runID, 0)
	if err != nil {
		return nil, err
	}

	open := make(map[string]*types.Question)
	var order []string

	for _, ev := range events {
		switch ev.Type {
		case types.EventHumanInputRequested:
			qid := ev.PayloadString("question_id")
			if qid == "" {
				continue
			}
			q := &types.Question{
				QuestionID: qid,
				Kind:       types.QuestionKind(ev.PayloadString("kind")),
				Prompt:     ev.PayloadString("prompt"),
				TaskID:     ev.TaskID,
			}
			open[qid] = q
			order = append(order, qid)
		case types.EventHumanInputProvided:
			qid := ev.PayloadString("question_id")
			delete(open, qid)
		}
	}

	result := make([]*types.Question, 0, len(open))
	for _, qid := range order {
		if q, ok := open[qid]; ok {
			result = append(result, q)
		}
	}
	return result, nil
}
