// Package credential provides the durable key-value slot that holds the bearer token
// between runs.
package credential

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// TokenSlot is the fixed slot name the session token is kept under.
const TokenSlot = "access_token"

// Store is a string key-value slot. Load returns domain.ErrNotFound for an empty slot;
// Delete on an empty slot is not an error.
type Store interface {
	Load(ctx context.Context, name string) (string, error)
	Save(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

type memoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

// NewMemory returns a process-local Store. Nothing survives a restart.
func NewMemory() Store {
	return &memoryStore{slots: make(map[string]string)}
}

func (m *memoryStore) Load(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	v, ok := m.slots[name]
	m.mu.RUnlock()
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Save(_ context.Context, name, value string) error {
	m.mu.Lock()
	m.slots[name] = value
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.slots, name)
	m.mu.Unlock()
	return nil
}
