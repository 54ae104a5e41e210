// Package lode archives supervisor events into a Hive-partitioned Lode
// dataset (partition keys: source/category/day/run_id/event_type) for
// cross-host inspection and long-term retention. It is never the
// authoritative store for run state; eventstore.Store owns that and calls
// into this package through the eventstore.Mirror interface, tolerating
// mirror failures without rolling back the local append.
package lode

import (
	"context"
	"time"

	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/types"
)

// DeriveDay computes the partition day from run start time, UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// DefaultDataset is the default Lode dataset name.
const DefaultDataset = "thence"

// Config holds the partition keys a Sink writes under.
type Config struct {
	// Dataset is the Lode dataset ID (default DefaultDataset).
	Dataset string
	// Source is the partition key for the supervising host/provider.
	Source string
	// Category is the partition key for the logical data type (events, metrics).
	Category string
	// Day is the partition key derived from run start time (YYYY-MM-DD UTC).
	Day string
	// RunID is the partition key for the run identifier.
	RunID string
}

// Sink archives events and metrics snapshots for one run into a Lode
// dataset. It implements eventstore.Mirror without importing eventstore,
// keeping the dependency direction storage-inward.
type Sink struct {
	config Config
	client Client
}

// Client abstracts the Lode storage client so tests can substitute a stub
// without a real Lode dataset.
type Client interface {
	// WriteEvents writes a batch of events to Lode, preserving order.
	WriteEvents(ctx context.Context, dataset, runID string, events []*types.Event) error

	// WriteMetrics writes a metrics snapshot, partitioned under category=metrics.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error

	// Close releases client resources.
	Close() error
}

// NewSink creates a new Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{config: config, client: client}
}

// MirrorEvents implements eventstore.Mirror.
func (s *Sink) MirrorEvents(ctx context.Context, runID string, events []*types.Event) error {
	return s.client.WriteEvents(ctx, s.config.Dataset, runID, events)
}

// WriteMetrics archives a metrics snapshot for the run.
func (s *Sink) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return s.client.WriteMetrics(ctx, snap, completedAt)
}

// Close releases the underlying client.
func (s *Sink) Close() error {
	return s.client.Close()
}

// StubClient is a test client that records writes without persisting.
type StubClient struct {
	Events  []StubEventRecord
	Metrics []StubMetricsRecord
	Closed  bool

	// WriteEventsErr, if set, is returned by WriteEvents instead of recording.
	WriteEventsErr error
	// WriteMetricsErr, if set, is returned by WriteMetrics instead of recording.
	WriteMetricsErr error
}

// StubEventRecord is a recorded event write for testing.
type StubEventRecord struct {
	Dataset string
	RunID   string
	Events  []*types.Event
}

// StubMetricsRecord is a recorded metrics write for testing.
type StubMetricsRecord struct {
	Snapshot    metrics.Snapshot
	CompletedAt time.Time
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteEvents implements Client.
func (c *StubClient) WriteEvents(_ context.Context, dataset, runID string, events []*types.Event) error {
	if c.WriteEventsErr != nil {
		return c.WriteEventsErr
	}
	c.Events = append(c.Events, StubEventRecord{Dataset: dataset, RunID: runID, Events: events})
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	if c.WriteMetricsErr != nil {
		return c.WriteMetricsErr
	}
	c.Metrics = append(c.Metrics, StubMetricsRecord{Snapshot: snap, CompletedAt: completedAt})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
