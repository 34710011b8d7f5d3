package auth

import (
	"context"
	"sync"

	"github.com/v2t/web/internal/models"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]models.Session)}
}

// InMemorySessionStore implements SessionStore for tests and single-instance deployments.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// Save persists the provided session record without its token.
func (s *InMemorySessionStore) Save(_ context.Context, key string, session models.Session) error {
	session.Token = ""
	s.mu.Lock()
	s.sessions[key] = session
	s.mu.Unlock()
	return nil
}

// Find retrieves a session by key.
func (s *InMemorySessionStore) Find(_ context.Context, key string) (models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session stored under key.
func (s *InMemorySessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, key)
	return nil
}

// Has reports whether a record exists for token. Useful for tests.
func (s *InMemorySessionStore) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[StoreKey(token)]
	return ok
}
