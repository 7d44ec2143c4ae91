package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenManager issues and validates short-lived join tokens used to
// bootstrap a CLI operator's mTLS certificate: a leader mints a token out
// of band, the operator redeems it via the RequestCertificate RPC before
// they have any client certificate of their own. Held in memory only — a
// manager restart invalidates outstanding tokens, same as the teacher's.
type TokenManager struct {
	tokens map[string]*JoinToken
	mu     sync.RWMutex
}

// JoinToken is a single-use-window credential scoped to one role.
// fleetd only ever mints "cli" tokens: agent hosts authenticate with the
// bearer token in pkg/agentclient, not an issued certificate, and manager
// replicas join via AddVoter plus an out-of-band certificate copy (see
// cmd/fleetd's "cluster join" docs), not a token.
type JoinToken struct {
	Token     string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewTokenManager creates an empty token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{tokens: make(map[string]*JoinToken)}
}

// GenerateToken mints a new random token for role, valid until ttl elapses.
func (tm *TokenManager) GenerateToken(role string, ttl time.Duration) (*JoinToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	jt := &JoinToken{
		Token:     hex.EncodeToString(raw),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	tm.mu.Lock()
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()

	return jt, nil
}

// ValidateToken reports the role a token was issued for, or an error if
// it's unknown or expired. It does not consume the token — callers that
// want single-use semantics should follow a successful validation with
// RevokeToken.
func (tm *TokenManager) ValidateToken(token string) (string, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	jt, ok := tm.tokens[token]
	if !ok {
		return "", fmt.Errorf("invalid join token")
	}
	if time.Now().After(jt.ExpiresAt) {
		return "", fmt.Errorf("join token expired")
	}
	return jt.Role, nil
}

// RevokeToken removes a token so it can't be redeemed again.
func (tm *TokenManager) RevokeToken(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}
