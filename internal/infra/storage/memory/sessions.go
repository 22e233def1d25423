package memory

import (
	"context"
	"sync"

	domainauth "rentcancel/internal/domain/auth"
)

// SessionStore keeps bearer sessions in memory. Expiry is enforced by the
// auth service, not here.
type SessionStore struct {
	mu     sync.RWMutex
	tokens map[domainauth.Token]*domainauth.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{tokens: make(map[domainauth.Token]*domainauth.Session)}
}

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	if session == nil {
		return domainauth.ErrTokenRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[session.Token] = cloneSession(session)
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.tokens[token]
	if !ok {
		return nil, domainauth.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func cloneSession(s *domainauth.Session) *domainauth.Session {
	c := *s
	c.Roles = append([]domainauth.Role(nil), s.Roles...)
	return &c
}

var _ domainauth.SessionStore = (*SessionStore)(nil)
