package convergeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageWithAndWithoutCause(t *testing.T) {
	e := New(KindTransientAgent, "deploy", errors.New("dial tcp: refused"))
	assert.Equal(t, "deploy: transient_agent: dial tcp: refused", e.Error())

	bare := New(KindInvariantViolation, "reconcile", nil)
	assert.Equal(t, "reconcile: invariant_violation", bare.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	e := New(KindPermanentAgent, "link", cause)
	assert.ErrorIs(t, e, cause)
}

func TestKindOf(t *testing.T) {
	e := New(KindResourceInsufficient, "place", nil)
	wrapped := fmt.Errorf("placement failed: %w", e)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindResourceInsufficient, kind)

	_, ok = KindOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestRetryable(t *testing.T) {
	retryable := []Kind{KindTransientAgent, KindLockConflict, KindImageMissing}
	for _, k := range retryable {
		assert.Truef(t, k.Retryable(), "%s should be retryable", k)
	}

	terminal := []Kind{KindPermanentAgent, KindResourceInsufficient, KindEnforcementExhausted, KindInvariantViolation}
	for _, k := range terminal {
		assert.Falsef(t, k.Retryable(), "%s should not be retryable", k)
	}
}
