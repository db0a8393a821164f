package session

import (
	"context"
	"sync"
)

// TokenStore is durable, process-local storage for the current access token.
// Pure key/value semantics: Load returns the stored token or empty, Replace
// overwrites it, Clear removes it.
//
// Only the session manager and the refresh gate mutate the store, and both
// go through Replace/Clear — there is no other write path.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Replace(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-memory TokenStore for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored token, or empty if none.
func (s *MemoryStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// Replace overwrites the stored token.
func (s *MemoryStore) Replace(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear removes the stored token.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
