// Package reader provides the read-side data access layer for the CLI.
//
// All read-only commands (inspect, questions) go through this wrapper
// instead of touching the event log directly. The package uses dependency
// injection via SetReader() to swap between a stub and the real
// store-backed implementation; default is a StubReader useful for tests
// and command wiring that hasn't resolved a run root yet.
package reader

import "context"

// Reader abstracts read-only access to run state for CLI commands.
type Reader interface {
	// InspectRun projects the full state of a run from its event log.
	InspectRun(ctx context.Context, runID string) (*RunSummary, error)
}

// defaultReader is the package-level reader instance.
var defaultReader Reader = NewStubReader()

// SetReader sets the package-level reader instance.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the current package-level reader instance.
func GetReader() Reader {
	return defaultReader
}

// InspectRun delegates to the package-level reader.
func InspectRun(ctx context.Context, runID string) (*RunSummary, error) {
	return defaultReader.InspectRun(ctx, runID)
}
