package fakeapi

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

type tokenMeta struct {
	AccountID int
	Kind      tokenKind
	ExpiresAt time.Time
}

// tokenManager keeps opaque bearer tokens in memory. Expired tokens stay known so the
// server can answer "Token expired" rather than "Invalid token".
type tokenManager struct {
	mu     sync.RWMutex
	tokens map[string]tokenMeta
	now    func() time.Time
}

func newTokenManager(now func() time.Time) *tokenManager {
	return &tokenManager{
		tokens: make(map[string]tokenMeta),
		now:    now,
	}
}

func (m *tokenManager) Issue(accountID int, kind tokenKind, ttl time.Duration) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.tokens[token] = tokenMeta{
		AccountID: accountID,
		Kind:      kind,
		ExpiresAt: m.now().Add(ttl),
	}
	m.mu.Unlock()
	return token, nil
}

// Validate returns the token's account and the 401 detail to send when it is not usable.
func (m *tokenManager) Validate(token string) (int, string) {
	m.mu.RLock()
	meta, ok := m.tokens[token]
	m.mu.RUnlock()
	switch {
	case !ok:
		return 0, "Invalid token"
	case meta.Kind != kindAccess:
		return 0, "Invalid token type"
	case m.now().After(meta.ExpiresAt):
		return 0, "Token expired"
	}
	return meta.AccountID, ""
}

// ExpireAll makes every issued token expired.
func (m *tokenManager) ExpireAll() {
	past := m.now().Add(-time.Second)
	m.mu.Lock()
	for k, meta := range m.tokens {
		meta.ExpiresAt = past
		m.tokens[k] = meta
	}
	m.mu.Unlock()
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
