package cache

import (
	"sync"

	"github.com/siherrmann/recaller/model"
)

// Session deduplicates promotions inside one interaction scope. A key marked
// handled is skipped by later promotes of the same session, a new session
// starts blank. Safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	handled map[model.EntityKey]struct{}
}

// NewSession creates a new empty session
func NewSession() *Session {
	return &Session{
		handled: map[model.EntityKey]struct{}{},
	}
}

// AlreadyHandled checks whether the key was promoted in this session
func (s *Session) AlreadyHandled(key model.EntityKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.handled[key]
	return ok
}

// MarkHandled records the key as promoted in this session
func (s *Session) MarkHandled(key model.EntityKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handled[key] = struct{}{}
}

// Clear forgets all handled keys
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handled = map[model.EntityKey]struct{}{}
}

// Size returns the number of handled keys
func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.handled)
}
