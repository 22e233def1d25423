package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "rentcancel/internal/domain/auth"
)

type TokenGenerator interface {
	NewToken() (string, error)
}

// Service resolves bearer tokens into sessions. Sessions are normally issued
// by the identity service; IssueSession exists for fixtures and local runs.
type Service struct {
	Sessions   domainauth.SessionStore
	Tokens     TokenGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

func (s *Service) ResolveToken(ctx context.Context, token string) (*domainauth.Session, error) {
	if s.Sessions == nil {
		return nil, errors.New("auth: session store required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainauth.ErrTokenRequired
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, domainauth.ErrSessionExpired
	}
	return session, nil
}

func (s *Service) IssueSession(ctx context.Context, userID string, roles ...domainauth.Role) (*domainauth.Session, error) {
	if s.Sessions == nil || s.Tokens == nil {
		return nil, errors.New("auth: session store and token generator required")
	}
	token, err := s.Tokens.NewToken()
	if err != nil {
		return nil, err
	}
	session, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:  domainauth.Token(token),
		UserID: userID,
		Roles:  roles,
		TTL:    s.sessionTTL(),
		Now:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("session issued", "user_id", session.UserID, "roles", session.Roles, "expires_at", session.ExpiresAt)
	}
	return session, nil
}

func (s *Service) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return 24 * time.Hour
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
