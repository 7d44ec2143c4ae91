package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestStore connects to a local Redis instance (default address, DB 15
// to stay out of any real coordination keyspace) and skips the test if one
// isn't reachable, mirroring how the containerd integration tests skip
// when no daemon is available.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New("127.0.0.1:6379", "", 15)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAcquireReconcileLockExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	labID := "lab-" + uuid.New().String()

	lock1, ok := s.AcquireReconcileLock(ctx, labID, "token-1", time.Minute)
	if !ok {
		t.Fatal("expected first reconcile lock acquisition to succeed")
	}
	defer lock1.Unlock(ctx)

	_, ok = s.AcquireReconcileLock(ctx, labID, "token-2", time.Minute)
	if ok {
		t.Fatal("expected second reconcile lock acquisition to fail while held")
	}

	if err := lock1.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	lock3, ok := s.AcquireReconcileLock(ctx, labID, "token-3", time.Minute)
	if !ok {
		t.Fatal("expected lock to be acquirable again after release")
	}
	lock3.Unlock(ctx)
}

func TestUnlockOnlyReleasesOwnToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	labID := "lab-" + uuid.New().String()

	lock, ok := s.AcquireReconcileLock(ctx, labID, "token-a", time.Minute)
	if !ok {
		t.Fatal("expected lock acquisition to succeed")
	}

	stolen := &Lock{store: s, key: reconcileLockPrefix + labID, token: "not-the-real-token"}
	if err := stolen.Unlock(ctx); err != nil {
		t.Fatalf("unlock with wrong token should not error: %v", err)
	}

	_, ok = s.AcquireReconcileLock(ctx, labID, "token-b", time.Minute)
	if ok {
		t.Fatal("lock should still be held after an unlock attempt with the wrong token")
	}

	lock.Unlock(ctx)
}

func TestEnforcementCooldown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	labID, nodeID := "lab-"+uuid.New().String(), "node-1"

	if s.InEnforcementCooldown(ctx, labID, nodeID) {
		t.Fatal("expected no cooldown before one is set")
	}

	if err := s.SetEnforcementCooldown(ctx, labID, nodeID, time.Minute); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}

	if !s.InEnforcementCooldown(ctx, labID, nodeID) {
		t.Fatal("expected cooldown to be active immediately after setting it")
	}

	if err := s.ClearEnforcementCooldown(ctx, labID, nodeID); err != nil {
		t.Fatalf("clear cooldown: %v", err)
	}

	if s.InEnforcementCooldown(ctx, labID, nodeID) {
		t.Fatal("expected cooldown to be gone after clearing it")
	}
}

func TestClearEnforcementCooldownOnUnsetKeyIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	labID, nodeID := "lab-"+uuid.New().String(), "node-1"

	if err := s.ClearEnforcementCooldown(ctx, labID, nodeID); err != nil {
		t.Fatalf("clearing an absent cooldown key should not error: %v", err)
	}
}

func TestAcquireLinkOpsLockIsPerLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	labID := "lab-" + uuid.New().String()

	lockA, ok := s.AcquireLinkOpsLock(ctx, labID, "link-a", "token", time.Minute)
	if !ok {
		t.Fatal("expected link-a lock to be acquired")
	}
	defer lockA.Unlock(ctx)

	lockB, ok := s.AcquireLinkOpsLock(ctx, labID, "link-b", "token", time.Minute)
	if !ok {
		t.Fatal("expected link-b lock to be independently acquirable")
	}
	defer lockB.Unlock(ctx)
}
