// Package adapter defines the external-notifier boundary for the
// Question/Pause subsystem: an optional best-effort push when a run opens
// a question, alongside the CLI (the authoritative answer channel).
package adapter

import (
	"context"

	"github.com/pithecene-io/thence/types"
)

// Adapter pushes an opened question to a downstream system. It never
// blocks the event append that already recorded the question; callers
// treat a Notify error as a logged warning, not a fatal one.
type Adapter interface {
	// Notify sends a question-opened notification to the downstream system.
	// Must respect context cancellation and deadlines.
	Notify(ctx context.Context, q *types.Question) error

	// Close releases adapter resources.
	Close() error
}
