// Package convergeerr classifies the failures that every convergence loop
// (NLM, reconciler, state enforcement, link orchestration) needs to react to
// differently: retry silently, back off, surface to the user, or halt.
//
// No third-party result/error-kind library appears anywhere in the example
// pack, so this is a small closed enum over the standard errors package
// rather than an adopted dependency — see DESIGN.md.
package convergeerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of ways a convergence operation can fail.
type Kind string

const (
	// KindTransientAgent is a network/RPC failure talking to an agent that
	// is expected to clear on its own (timeout, connection refused).
	KindTransientAgent Kind = "transient_agent"
	// KindPermanentAgent is an agent-reported failure that will not clear
	// by retrying the same operation (invalid spec, unsupported device kind).
	KindPermanentAgent Kind = "permanent_agent"
	// KindResourceInsufficient means the target host lacks capacity.
	KindResourceInsufficient Kind = "resource_insufficient"
	// KindImageMissing means the node's image isn't available on its host yet.
	KindImageMissing Kind = "image_missing"
	// KindLockConflict means a coordination lock is held by another actor.
	KindLockConflict Kind = "lock_conflict"
	// KindEnforcementExhausted means retries for a node/link were exhausted.
	KindEnforcementExhausted Kind = "enforcement_exhausted"
	// KindInvariantViolation means the system observed a state that should
	// be unreachable; it is always a bug, never a runtime condition to retry.
	KindInvariantViolation Kind = "invariant_violation"
)

// Error pairs a Kind with the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and the operation that produced it.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind carried by err, if any, via errors.As.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// Retryable reports whether the kind warrants another attempt without
// operator intervention. Transient failures, lock conflicts and missing
// images clear on their own; everything else needs a human or a different
// code path.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientAgent, KindLockConflict, KindImageMissing:
		return true
	default:
		return false
	}
}
