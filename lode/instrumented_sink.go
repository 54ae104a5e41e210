package lode

import (
	"context"

	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/types"
)

// InstrumentedMirror wraps a Sink (or any eventstore.Mirror-shaped archiver)
// and records lode_write_success/lode_write_failure on the metrics
// collector for every mirror attempt.
type InstrumentedMirror struct {
	inner     interface {
		MirrorEvents(ctx context.Context, runID string, events []*types.Event) error
	}
	collector *metrics.Collector
}

// NewInstrumentedMirror wraps a mirror with metrics instrumentation.
func NewInstrumentedMirror(inner *Sink, collector *metrics.Collector) *InstrumentedMirror {
	return &InstrumentedMirror{inner: inner, collector: collector}
}

// MirrorEvents delegates to the inner sink and records success or failure.
func (m *InstrumentedMirror) MirrorEvents(ctx context.Context, runID string, events []*types.Event) error {
	err := m.inner.MirrorEvents(ctx, runID, events)
	if err != nil {
		m.collector.IncLodeWriteFailure()
	} else {
		m.collector.IncLodeWriteSuccess()
	}
	return err
}
