package session

import (
	"context"
	"sync"
	"time"

	"github.com/renderfleet/renderfleet/pkg/metrics"
)

// MemoryStore implements Store with a mutex-guarded map. Sessions do not
// survive a restart; use the sqlite store for real deployments.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewMemoryStore creates an in-memory session store. A non-positive ttl
// falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create mints a session for username and returns its token.
func (s *MemoryStore) Create(_ context.Context, username string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	s.mu.Lock()
	s.sessions[token] = &Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Unlock()

	metrics.SessionsCreated.Inc()
	return token, nil
}

// Verify returns the live session for token, deleting expired entries on
// sight.
func (s *MemoryStore) Verify(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	if !time.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		metrics.SessionsExpired.Inc()
		return nil, ErrNotFound
	}

	cp := *sess
	return &cp, nil
}

// Invalidate removes the session. Unknown tokens are a no-op.
func (s *MemoryStore) Invalidate(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; ok {
		delete(s.sessions, token)
		metrics.SessionsInvalidated.Inc()
	}
	return nil
}

// Cleanup removes expired sessions.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for token, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, token)
			metrics.SessionsExpired.Inc()
		}
	}
	return nil
}

// Close releases nothing for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored sessions, expired or not. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
