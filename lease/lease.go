// Package lease implements crash-safe in-flight markers on disk (component
// 4.6). A lease file at <run>/leases/<task>/attempt<k>/<role>.json proves
// that exactly one supervisor process owns an attempt; a fresh lease found
// at startup means another supervisor is already progressing the run.
package lease

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pithecene-io/thence/types"
)

// ErrLeaseHeld is returned by Acquire when a fresh lease already exists.
var ErrLeaseHeld = errors.New("lease: held by another supervisor")

// Manager owns the lease directory for one run.
type Manager struct {
	root string // <run>/leases
	ttl  time.Duration
	slack time.Duration
	host string
	pid  int
}

// NewManager creates a lease Manager rooted at <run>/leases.
func NewManager(runRoot string, ttl, slack time.Duration) *Manager {
	host, _ := os.Hostname()
	return &Manager{
		root:  filepath.Join(runRoot, "leases"),
		ttl:   ttl,
		slack: slack,
		host:  host,
		pid:   os.Getpid(),
	}
}

func (m *Manager) path(taskID string, attempt int, role types.ActorRole) string {
	return filepath.Join(m.root, taskID, fmt.Sprintf("attempt%d", attempt), string(role)+".json")
}

// Acquire creates the lease file exclusively. If a lease already exists and
// is fresh, ErrLeaseHeld is returned. If it exists but is stale (renewed_at
// older than ttl+slack), it is atomically overwritten.
func (m *Manager) Acquire(taskID string, attempt int, role types.ActorRole) (*types.Lease, error) {
	path := m.path(taskID, attempt, role)

	if existing, err := m.read(path); err == nil {
		if existing.Fresh(time.Now(), m.ttl, m.slack) {
			return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, path)
		}
		// Stale: fall through and overwrite.
	}

	now := time.Now().UTC()
	l := &types.Lease{
		Pid:        m.pid,
		Host:       m.host,
		TaskID:     taskID,
		Attempt:    attempt,
		Role:       role,
		AcquiredAt: now,
		RenewedAt:  now,
		DeadlineAt: now.Add(m.ttl),
	}
	if err := m.write(path, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Renew updates renewed_at and deadline_at for an owned lease.
func (m *Manager) Renew(taskID string, attempt int, role types.ActorRole) error {
	path := m.path(taskID, attempt, role)
	l, err := m.read(path)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	l.RenewedAt = now
	l.DeadlineAt = now.Add(m.ttl)
	return m.write(path, l)
}

// Release removes a lease file on normal attempt completion.
func (m *Manager) Release(taskID string, attempt int, role types.ActorRole) error {
	err := os.Remove(m.path(taskID, attempt, role))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StaleAttempt identifies an in-flight attempt whose lease was found stale
// during a scan.
type StaleAttempt struct {
	TaskID  string
	Attempt int
	Role    types.ActorRole
}

// ScanResult is the outcome of scanning all leases under a run at startup
// or resume.
type ScanResult struct {
	// DoubleSupervisor is true if any fresh lease was found; the caller
	// must refuse to start.
	DoubleSupervisor bool
	// Stale lists attempts whose leases were stale and have been removed;
	// the caller should emit attempt_interrupted for each and let the
	// scheduler reopen the task.
	Stale []StaleAttempt
}

// Scan walks every lease file under the run, classifying each as fresh
// (refuse to start a second supervisor) or stale (clear it and report it
// for attempt_interrupted bookkeeping). Stale leases are removed as part
// of the scan so a concurrent resume cannot observe them twice.
func (m *Manager) Scan() (*ScanResult, error) {
	result := &ScanResult{}

	err := filepath.WalkDir(m.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		l, err := m.read(path)
		if err != nil {
			return err
		}
		if l.Fresh(time.Now(), m.ttl, m.slack) {
			result.DoubleSupervisor = true
			return nil
		}
		result.Stale = append(result.Stale, StaleAttempt{TaskID: l.TaskID, Attempt: l.Attempt, Role: l.Role})
		_ = os.Remove(path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) read(path string) (*types.Lease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l types.Lease
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (m *Manager) write(path string, l *types.Lease) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
