package claims

import (
	"context"
	"sync"
)

// MemoryTokenStore is a process-local TokenStore. Suitable for tests and for
// hosts that keep their own durable storage; BunTokenStore is the durable
// implementation.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Get returns the stored token, or empty when none is held.
func (m *MemoryTokenStore) Get(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// Put replaces the stored token.
func (m *MemoryTokenStore) Put(ctx context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Delete clears the stored token.
func (m *MemoryTokenStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
