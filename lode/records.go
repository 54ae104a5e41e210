package lode

import (
	"time"

	"github.com/pithecene-io/thence/metrics"
	"github.com/pithecene-io/thence/types"
)

// RecordKind discriminator values for the event/metrics partitions.
const (
	RecordKindEvent   = "event"
	RecordKindMetrics = "metrics"
)

// EventRecord is the storage format for a supervisor event.
type EventRecord struct {
	RecordKind      string         `json:"record_kind"`
	ContractVersion string         `json:"contract_version"`
	RunID           string         `json:"run_id"`
	Seq             int64          `json:"seq"`
	Type            string         `json:"type"`
	Ts              string         `json:"ts"`
	TaskID          *string        `json:"task_id,omitempty"`
	ActorRole       *string        `json:"actor_role,omitempty"`
	ActorID         *string        `json:"actor_id,omitempty"`
	Attempt         *int           `json:"attempt,omitempty"`
	Payload         map[string]any `json:"payload"`
	DedupeKey       *string        `json:"dedupe_key,omitempty"`

	Source   string `json:"source"`
	Category string `json:"category"`
	Day      string `json:"day"`
}

// toEventRecordMap converts an Event to the map Lode's Hive layout requires.
func toEventRecordMap(e *types.Event, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindEvent,
		"contract_version": types.ContractVersion,
		"run_id":           e.RunID,
		"seq":              e.Seq,
		"type":             string(e.Type),
		"event_type":       string(e.Type), // partition key
		"ts":               e.Ts,
		"payload":          e.Payload,
		"source":           cfg.Source,
		"category":         cfg.Category,
		"day":              cfg.Day,
	}
	if e.TaskID != nil {
		m["task_id"] = *e.TaskID
	}
	if e.ActorRole != nil {
		m["actor_role"] = string(*e.ActorRole)
	}
	if e.ActorID != nil {
		m["actor_id"] = *e.ActorID
	}
	if e.Attempt != nil {
		m["attempt"] = *e.Attempt
	}
	if e.DedupeKey != nil {
		m["dedupe_key"] = *e.DedupeKey
	}
	return m
}

// MetricsRecord is the storage format for a metrics snapshot, written under
// category=metrics with event_type=metrics as its partition key.
type MetricsRecord struct {
	RecordKind  string `json:"record_kind"`
	CompletedAt string `json:"completed_at"`

	Source   string `json:"source"`
	Category string `json:"category"`
	Day      string `json:"day"`
	RunID    string `json:"run_id"`
}

func toMetricsRecordMap(snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":  RecordKindMetrics,
		"snapshot":     snap,
		"completed_at": completedAt.UTC().Format(time.RFC3339Nano),
		"event_type":   "metrics",
		"source":       cfg.Source,
		"category":     "metrics",
		"day":          cfg.Day,
		"run_id":       cfg.RunID,
	}
}
