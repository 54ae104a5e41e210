package lease

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/thence/types"
)

func TestAcquire_FreshLeaseRejectsSecondAcquire(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.Minute, 10*time.Second)

	if _, err := m.Acquire("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	_, err := m.Acquire("t1", 1, types.ActorRoleImplementer)
	if !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}
}

func TestAcquire_StaleLeaseIsOverwritten(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.Millisecond, 0)

	l, err := m.Acquire("t1", 1, types.ActorRoleImplementer)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	l2, err := m.Acquire("t1", 1, types.ActorRoleImplementer)
	if err != nil {
		t.Fatalf("expected stale lease to be overwritten, got %v", err)
	}
	if !l2.AcquiredAt.After(l.AcquiredAt) && l2.AcquiredAt.Equal(l.AcquiredAt) {
		t.Fatalf("expected a new lease instance")
	}
}

func TestRenew_ExtendsDeadline(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.Minute, 10*time.Second)

	l, err := m.Acquire("t1", 1, types.ActorRoleReviewer)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := m.Renew("t1", 1, types.ActorRoleReviewer); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	l2, err := m.read(m.path("t1", 1, types.ActorRoleReviewer))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !l2.RenewedAt.After(l.RenewedAt) && !l2.RenewedAt.Equal(l.RenewedAt) {
		t.Fatalf("expected RenewedAt to advance")
	}
}

func TestRelease_RemovesLease(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.Minute, 10*time.Second)

	if _, err := m.Acquire("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := m.Release("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := m.Acquire("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("expected re-Acquire after Release to succeed, got %v", err)
	}
}

func TestScan_DetectsDoubleSupervisor(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.Minute, 10*time.Second)

	if _, err := m.Acquire("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	result, err := m.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !result.DoubleSupervisor {
		t.Fatal("expected DoubleSupervisor=true for a fresh lease")
	}
}

func TestScan_ClearsStaleLeases(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.Millisecond, 0)

	if _, err := m.Acquire("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	result, err := m.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.DoubleSupervisor {
		t.Fatal("expected DoubleSupervisor=false when the only lease is stale")
	}
	if len(result.Stale) != 1 || result.Stale[0].TaskID != "t1" {
		t.Fatalf("expected one stale attempt for t1, got %+v", result.Stale)
	}

	if _, err := m.Acquire("t1", 1, types.ActorRoleImplementer); err != nil {
		t.Fatalf("expected Acquire after Scan cleared the stale lease, got %v", err)
	}
}
