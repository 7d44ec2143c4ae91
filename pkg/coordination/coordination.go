// Package coordination provides the cross-manager mutual-exclusion and
// cooldown primitives the convergence loops rely on: per-lab reconcile
// locks, per-link operation locks, per-lab deploy locks, and enforcement
// cooldowns. It is backed by Redis (SET NX EX), grounded on the go-redis
// client wrapper pattern used throughout aldrin-isaac-newtron's SONiC
// device connections (pkg/newtron/device/sonic/configdb.go).
package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cuemby/fleetd/pkg/log"
)

// Policy controls what a lock call does when Redis itself is unreachable.
type Policy int

const (
	// FailClosed treats a Redis error as "lock not acquired" — the caller
	// must not proceed. Used by the reconcile and link-ops locks, where two
	// managers acting at once would double-apply.
	FailClosed Policy = iota
	// FailOpen treats a Redis error as "lock acquired" — the caller proceeds
	// anyway. Used by the deploy lock, where the agent layer is the backstop
	// against a double deploy.
	FailOpen
)

const (
	reconcileLockPrefix  = "fleetd:lock:reconcile:"
	linkOpsLockPrefix    = "fleetd:lock:linkops:"
	deployLockPrefix     = "fleetd:lock:deploy:"
	enforcementCooldown  = "fleetd:cooldown:enforce:"
)

// Store wraps a Redis connection used purely for coordination state: locks
// and cooldowns. It holds no durable fleetd entities — those live in
// pkg/storage's Raft-replicated BoltStore.
type Store struct {
	client *redis.Client
}

// New connects to the Redis instance at addr (host:port).
func New(addr, password string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Lock is a held distributed lock; Unlock releases it early. Locks also
// expire on their own via TTL so a crashed holder never wedges the system.
type Lock struct {
	store *Store
	key   string
	token string
}

// acquire attempts SET key token NX EX ttl and reports whether it succeeded.
func (s *Store) acquire(ctx context.Context, key, token string, ttl time.Duration, policy Policy) (*Lock, bool) {
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		log.Logger.Warn().Err(err).Str("key", key).Msg("coordination store unreachable")
		if policy == FailOpen {
			return &Lock{store: s, key: key, token: token}, true
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &Lock{store: s, key: key, token: token}, true
}

// Unlock releases the lock if it is still held by this token. Using a
// compare-and-delete script (rather than a bare DEL) avoids releasing a
// lock that has since been re-acquired by someone else past its own TTL.
func (l *Lock) Unlock(ctx context.Context) error {
	if l == nil || l.store == nil {
		return nil
	}
	const script = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`
	return l.store.client.Eval(ctx, script, []string{l.key}, l.token).Err()
}

// AcquireReconcileLock serializes reconciliation for a single lab across
// managers so only one reconcile pass runs against it at a time. Fails
// closed: a coordination-store outage means this pass is skipped rather
// than risking two managers reconciling the same lab concurrently.
func (s *Store) AcquireReconcileLock(ctx context.Context, labID, token string, ttl time.Duration) (*Lock, bool) {
	return s.acquire(ctx, reconcileLockPrefix+labID, token, ttl, FailClosed)
}

// AcquireLinkOpsLock serializes cross-host link convergence for one link
// state so tunnel create/update/delete can't race with itself.
func (s *Store) AcquireLinkOpsLock(ctx context.Context, labID, linkID, token string, ttl time.Duration) (*Lock, bool) {
	key := fmt.Sprintf("%s%s:%s", linkOpsLockPrefix, labID, linkID)
	return s.acquire(ctx, key, token, ttl, FailClosed)
}

// AcquireDeployLock serializes deploy operations for one node (labID is
// the caller's composite "labID:nodeID" resource key; see pkg/nlm). Fails
// open: the agent layer is the backstop against a double-deploy, so a
// coordination-store outage lets the deploy proceed rather than wedging.
func (s *Store) AcquireDeployLock(ctx context.Context, labID, token string, ttl time.Duration) (*Lock, bool) {
	return s.acquire(ctx, deployLockPrefix+labID, token, ttl, FailOpen)
}

// SetEnforcementCooldown marks a node as "don't retry enforcement" until ttl
// elapses, after a node has exhausted its retry budget.
func (s *Store) SetEnforcementCooldown(ctx context.Context, labID, nodeID string, ttl time.Duration) error {
	key := fmt.Sprintf("%s%s:%s", enforcementCooldown, labID, nodeID)
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// InEnforcementCooldown reports whether a node is currently on cooldown. A
// Redis error is treated as "not on cooldown" (fail open) so a coordination
// outage degrades to more retries, never to none.
func (s *Store) InEnforcementCooldown(ctx context.Context, labID, nodeID string) bool {
	key := fmt.Sprintf("%s%s:%s", enforcementCooldown, labID, nodeID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		log.Logger.Warn().Err(err).Str("key", key).Msg("coordination store unreachable, assuming no cooldown")
		return false
	}
	return n > 0
}

// ClearEnforcementCooldown drops a node's cooldown key early, so a node
// that was backed off after exhausting its retry budget starts enforcing
// again as soon as the user issues an explicit operation for it (deploy,
// destroy, start, stop) rather than waiting out the rest of the TTL.
func (s *Store) ClearEnforcementCooldown(ctx context.Context, labID, nodeID string) error {
	key := fmt.Sprintf("%s%s:%s", enforcementCooldown, labID, nodeID)
	return s.client.Del(ctx, key).Err()
}
