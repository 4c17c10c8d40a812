package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/genmedia-gateway/internal/profile"
)

func TestResolveExplicitWins(t *testing.T) {
	t.Parallel()

	session := NewMemorySession()
	require.NoError(t, session.SetToken(context.Background(), "session-tok"))
	store := profile.NewMemory()
	store.SetToken("profile-tok")

	r := NewResolver(session, store, nil)
	cred, err := r.Resolve(context.Background(), "explicit-tok")
	require.NoError(t, err)
	require.Equal(t, "explicit-tok", cred.Token)
	require.Equal(t, SourceExplicit, cred.Source)
}

func TestResolveSessionBeforeProfile(t *testing.T) {
	t.Parallel()

	session := NewMemorySession()
	require.NoError(t, session.SetToken(context.Background(), "session-tok"))
	store := profile.NewMemory()
	store.SetToken("profile-tok")

	r := NewResolver(session, store, nil)
	cred, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "session-tok", cred.Token)
	require.Equal(t, SourceSession, cred.Source)
}

func TestResolveProfileWritesBackToSession(t *testing.T) {
	t.Parallel()

	session := NewMemorySession()
	store := profile.NewMemory()
	store.SetToken("profile-tok")

	r := NewResolver(session, store, nil)
	cred, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "profile-tok", cred.Token)
	require.Equal(t, SourceProfile, cred.Source)

	cached, err := session.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "profile-tok", cached)

	// Second resolution short-circuits at the session cache.
	cred, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, SourceSession, cred.Source)
}

func TestResolveExhaustedFailsAuthMissing(t *testing.T) {
	t.Parallel()

	r := NewResolver(NewMemorySession(), profile.Noop{}, nil)
	_, err := r.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrAuthMissing)
}

type failingSession struct{}

func (failingSession) Token(context.Context) (string, error) {
	return "", errors.New("session backend down")
}

func (failingSession) SetToken(context.Context, string) error {
	return errors.New("session backend down")
}

func TestResolveSessionErrorPropagates(t *testing.T) {
	t.Parallel()

	r := NewResolver(failingSession{}, profile.Noop{}, nil)
	_, err := r.Resolve(context.Background(), "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAuthMissing)
}
