package reader

import (
	"context"
	"fmt"

	"github.com/pithecene-io/thence/types"
)

// StubReader is a canned Reader for tests and command wiring that has not
// resolved a real run root yet. It is the package default.
type StubReader struct {
	Runs map[string]*RunSummary
}

// NewStubReader builds a StubReader with one canned run, "run-stub".
func NewStubReader() *StubReader {
	return &StubReader{
		Runs: map[string]*RunSummary{
			"run-stub": {
				RunID:         "run-stub",
				Status:        types.RunStatusRunning,
				PlanValidated: true,
				Tasks: []TaskSummary{
					{TaskID: "t1", Objective: "stub task", State: types.TaskStateReady},
				},
			},
		},
	}
}

// InspectRun returns the canned summary for runID, or an error if unknown.
func (s *StubReader) InspectRun(_ context.Context, runID string) (*RunSummary, error) {
	if summary, ok := s.Runs[runID]; ok {
		return summary, nil
	}
	return nil, fmt.Errorf("reader: unknown run %s", runID)
}

var _ Reader = (*StubReader)(nil)
