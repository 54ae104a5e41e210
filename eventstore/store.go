// Package eventstore implements the per-run append-only event log (component
// 4.1): durable sequencing, dedupe-key idempotence and foreign-key style
// integrity against the owning run. The authoritative durability path is a
// synchronously-flushed local JSONL file, mirrored best-effort into a
// Hive-partitioned Lode dataset for archival and cross-host inspection (see
// the lode package). Reads replay the local file; Lode is never the source of truth
// for seq assignment because its Dataset.Write/Read surface batches at
// segment granularity and does not itself guarantee the gapless
// per-run-sequence and single-writer dedupe semantics this store requires.
package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pithecene-io/thence/types"
)

// ErrRunNotFound is returned by Append when no Run row exists for the
// event's run_id, enforcing the foreign-key-style integrity constraint.
var ErrRunNotFound = errors.New("eventstore: run not found")

// Mirror receives a durable copy of every appended event, best-effort,
// after the authoritative local append succeeds. A Lode-backed mirror is
// provided by the lode package (lode.Sink, wrapped by
// lode.InstrumentedMirror); tests may use a no-op or recording mirror.
type Mirror interface {
	MirrorEvents(ctx context.Context, runID string, events []*types.Event) error
}

// NoopMirror discards events. Used when no archival backend is configured.
type NoopMirror struct{}

// MirrorEvents implements Mirror.
func (NoopMirror) MirrorEvents(context.Context, string, []*types.Event) error { return nil }

// Store is the per-run append-only event log.
type Store struct {
	root   string
	mirror Mirror

	mu      sync.Mutex
	runs    map[string]bool
	seq     map[string]int64
	dedupe  map[string]map[string]int64 // run_id -> dedupe_key -> seq
	handles map[string]*os.File
}

// New creates a Store rooted at root (typically <repo>/.<app>/runs). The
// mirror is consulted after every successful local append; pass
// NoopMirror{} to disable archival.
func New(root string, mirror Mirror) *Store {
	if mirror == nil {
		mirror = NoopMirror{}
	}
	return &Store{
		root:    root,
		mirror:  mirror,
		runs:    make(map[string]bool),
		seq:     make(map[string]int64),
		dedupe:  make(map[string]map[string]int64),
		handles: make(map[string]*os.File),
	}
}

// RegisterRun marks run_id as existing, satisfying the foreign-key
// integrity constraint for subsequent Append calls. Idempotent.
func (s *Store) RegisterRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = true
}

func (s *Store) logPath(runID string) string {
	return filepath.Join(s.root, runID, "events.jsonl")
}

// Append atomically assigns the next seq and persists event. If
// event.DedupeKey is set and already present for this run, the existing
// seq is returned and no new record is appended (idempotent at-least-once
// writers are expected per the durability contract).
func (s *Store) Append(ctx context.Context, runID string, event *types.Event) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, types.NewError(types.ErrStorage, "eventstore.Append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.runs[runID] {
		return 0, types.NewError(types.ErrStorage, "eventstore.Append", fmt.Errorf("%w: %s", ErrRunNotFound, runID))
	}

	if event.DedupeKey != nil {
		if existing, ok := s.dedupe[runID][*event.DedupeKey]; ok {
			return existing, nil
		}
	}

	nextSeq := s.seq[runID] + 1
	event.RunID = runID
	event.Seq = nextSeq
	if event.Ts == "" {
		event.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	f, err := s.handle(runID)
	if err != nil {
		return 0, types.NewError(types.ErrStorage, "eventstore.Append", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return 0, types.NewError(types.ErrStorage, "eventstore.Append", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return 0, types.NewError(types.ErrStorage, "eventstore.Append", err)
	}
	// Synchronous barrier: a crash after this point cannot lose the event.
	if err := f.Sync(); err != nil {
		return 0, types.NewError(types.ErrStorage, "eventstore.Append", err)
	}

	s.seq[runID] = nextSeq
	if event.DedupeKey != nil {
		if s.dedupe[runID] == nil {
			s.dedupe[runID] = make(map[string]int64)
		}
		s.dedupe[runID][*event.DedupeKey] = nextSeq
	}

	// Best-effort archival mirror; failures here never roll back the
	// authoritative local append.
	_ = s.mirror.MirrorEvents(ctx, runID, []*types.Event{event})

	return nextSeq, nil
}

func (s *Store) handle(runID string) (*os.File, error) {
	if f, ok := s.handles[runID]; ok {
		return f, nil
	}
	path := s.logPath(runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s.handles[runID] = f
	return f, nil
}

// LoadSince returns events with seq > afterSeq, ordered ascending. Pass 0
// to load the full log. The stream is restartable: the caller may call
// LoadSince again with the highest seq it has observed.
func (s *Store) LoadSince(ctx context.Context, runID string, afterSeq int64) ([]*types.Event, error) {
	path := s.logPath(runID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewError(types.ErrStorage, "eventstore.LoadSince", err)
	}

	var events []*types.Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var ev types.Event
		if err := dec.Decode(&ev); err != nil {
			break
		}
		if ev.Seq > afterSeq {
			events = append(events, &ev)
		}
	}
	return events, nil
}

// Replay rebuilds the in-memory seq/dedupe index for runID from its log,
// used on supervisor resume before any new Append calls for that run.
func (s *Store) Replay(ctx context.Context, runID string) error {
	events, err := s.LoadSince(ctx, runID, 0)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = true
	for _, ev := range events {
		if ev.Seq > s.seq[runID] {
			s.seq[runID] = ev.Seq
		}
		if ev.DedupeKey != nil {
			if s.dedupe[runID] == nil {
				s.dedupe[runID] = make(map[string]int64)
			}
			s.dedupe[runID][*ev.DedupeKey] = ev.Seq
		}
	}
	return nil
}

// Close releases file handles held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.handles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
