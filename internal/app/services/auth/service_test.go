package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "rentcancel/internal/domain/auth"
	"rentcancel/internal/infra/security"
	"rentcancel/internal/infra/storage/memory"
)

func TestIssueAndResolve(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := &Service{
		Sessions:   memory.NewSessionStore(),
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
		Now:        func() time.Time { return now },
	}
	ctx := context.Background()
	session, err := svc.IssueSession(ctx, "ops-1", domainauth.RoleAdmin)
	require.NoError(t, err)

	got, err := svc.ResolveToken(ctx, " "+string(session.Token)+" ")
	require.NoError(t, err)
	assert.Equal(t, "ops-1", got.UserID)
	assert.True(t, got.HasRole(domainauth.RoleAdmin))

	now = now.Add(2 * time.Hour)
	_, err = svc.ResolveToken(ctx, string(session.Token))
	assert.ErrorIs(t, err, domainauth.ErrSessionExpired)
}

func TestResolveRejectsBlankAndUnknown(t *testing.T) {
	svc := &Service{Sessions: memory.NewSessionStore()}
	_, err := svc.ResolveToken(context.Background(), "")
	assert.ErrorIs(t, err, domainauth.ErrTokenRequired)
	_, err = svc.ResolveToken(context.Background(), "nope")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}
