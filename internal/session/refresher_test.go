package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedInManager(t *testing.T, provider *fakeProvider) *session.Manager {
	t.Helper()
	m := session.NewManager(provider, nil, session.Options{})
	_, err := m.SignIn(context.Background(), "a", "b")
	require.NoError(t, err)
	return m
}

func TestRefresher_SkipsFreshSession(t *testing.T) {
	provider := &fakeProvider{signIn: newSession(enum.RoleAdmin, time.Hour)}
	m := signedInManager(t, provider)
	r := session.NewRefresher(m, time.Minute, 5*time.Minute)

	assert.False(t, r.Check(context.Background()))
	assert.Equal(t, provider.signIn.AccessToken, m.AccessToken())
}

func TestRefresher_RefreshesNearExpiry(t *testing.T) {
	provider := &fakeProvider{
		signIn:  newSession(enum.RoleAdmin, 2*time.Minute),
		refresh: newSession(enum.RoleAdmin, time.Hour),
	}
	m := signedInManager(t, provider)
	r := session.NewRefresher(m, time.Minute, 5*time.Minute)

	assert.True(t, r.Check(context.Background()))
	assert.Equal(t, provider.refresh.AccessToken, m.AccessToken())
}

func TestRefresher_FailureSignsOut(t *testing.T) {
	provider := &fakeProvider{
		signIn:     newSession(enum.RoleAdmin, time.Minute),
		refreshErr: errors.New("connection refused"),
	}
	m := signedInManager(t, provider)
	r := session.NewRefresher(m, time.Minute, 5*time.Minute)

	assert.False(t, r.Check(context.Background()))
	assert.Nil(t, m.Current())
	assert.Len(t, provider.revoked, 1)
}

func TestRefresher_NoSession(t *testing.T) {
	m := session.NewManager(&fakeProvider{}, nil, session.Options{})
	r := session.NewRefresher(m, 0, 0)

	assert.False(t, r.Check(context.Background()))
}

func TestRefresher_RunStopsOnCancel(t *testing.T) {
	provider := &fakeProvider{
		signIn:  newSession(enum.RoleAdmin, time.Second),
		refresh: newSession(enum.RoleAdmin, time.Hour),
	}
	m := signedInManager(t, provider)
	r := session.NewRefresher(m, 10*time.Millisecond, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return m.AccessToken() == provider.refresh.AccessToken
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefresher_KeepsSessionSignedInDuringRefresh(t *testing.T) {
	provider := &fakeProvider{
		signIn:  newSession(enum.RoleAdmin, time.Minute),
		refresh: newSession(enum.RoleAdmin, time.Hour),
	}
	m := signedInManager(t, provider)
	r := session.NewRefresher(m, time.Minute, 5*time.Minute)

	next := newSession(enum.RoleCashier, time.Hour)
	provider.onRefresh = func() {
		provider.signIn = next
		_, err := m.SignIn(context.Background(), "a", "b")
		require.NoError(t, err)
	}

	assert.False(t, r.Check(context.Background()))
	assert.Equal(t, next.AccessToken, m.AccessToken())
	assert.Empty(t, provider.revoked)
}
