package lode

import (
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/types"
)

func newTestClient(t *testing.T) *LodeClient {
	t.Helper()
	cfg := Config{Dataset: "thence", Source: "test-source", Category: "events", Day: "2026-02-03", RunID: "run-001"}
	client, err := NewLodeClientWithFactory(cfg, sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory: %v", err)
	}
	return client
}

func TestLodeClient_WriteEventsEmptyIsNoop(t *testing.T) {
	client := newTestClient(t)
	if err := client.WriteEvents(t.Context(), "thence", "run-001", nil); err != nil {
		t.Fatalf("expected no error for empty events, got %v", err)
	}
}

func TestLodeClient_WriteEventsRoundTrip(t *testing.T) {
	store := lode.NewMemory()
	factory := sharedFactory(store)
	cfg := Config{Dataset: "thence", Source: "test-source", Category: "events", Day: "2026-02-03", RunID: "run-001"}
	client, err := NewLodeClientWithFactory(cfg, factory)
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory: %v", err)
	}

	taskID := "t1"
	events := []*types.Event{
		{RunID: "run-001", Seq: 1, Type: types.EventRunStarted, Ts: "2026-02-03T15:00:00Z"},
		{RunID: "run-001", Seq: 2, Type: types.EventTaskRegistered, Ts: "2026-02-03T15:00:01Z", TaskID: &taskID},
	}
	if err := client.WriteEvents(t.Context(), "thence", "run-001", events); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	ds, err := NewReadDataset("thence", factory)
	if err != nil {
		t.Fatalf("NewReadDataset: %v", err)
	}
	latest, err := ds.Latest(t.Context())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	data, err := ds.Read(t.Context(), latest.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 records, got %d", len(data))
	}
}

func TestLodeClient_WriteMetricsRoundTrip(t *testing.T) {
	client := newTestClient(t)
	snap := metrics.Snapshot{RunsStarted: 1, RunsCompleted: 1, RunID: "run-001"}
	if err := client.WriteMetrics(t.Context(), snap, time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
}

func TestLodeClient_Close(t *testing.T) {
	client := newTestClient(t)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
