package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comanda-app/api/internal/navigation"
	"go.uber.org/zap"
)

// DefaultSettleDelay is how long Landing waits for the profile to settle
// after sign-in before routing.
const DefaultSettleDelay = time.Second

// Listener is called after every auth state change. s is nil on sign-out.
type Listener func(event Event, s *Session)

// Options configures a Manager.
type Options struct {
	SettleDelay time.Duration
	Logger      *zap.Logger
	// Notify receives user-facing messages such as MessageSessionExpired.
	Notify func(msg string)
}

// Manager owns the current session. It is loaded on Init, updated on auth
// events and cleared on sign-out.
type Manager struct {
	provider IdentityProvider
	store    Store
	settle   time.Duration
	logger   *zap.Logger
	notify   func(string)

	mu        sync.RWMutex
	current   *Session
	listeners map[int]Listener
	nextID    int

	nav navigation.Navigator
}

// NewManager creates a Manager. store may be nil for an in-memory session.
func NewManager(provider IdentityProvider, store Store, opts Options) *Manager {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notify == nil {
		opts.Notify = func(string) {}
	}
	return &Manager{
		provider:  provider,
		store:     store,
		settle:    opts.SettleDelay,
		logger:    opts.Logger,
		notify:    opts.Notify,
		listeners: make(map[int]Listener),
	}
}

// Init loads a persisted session. A missing session is not an error.
func (m *Manager) Init(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.logger.Debug("session restored", zap.String("user_id", s.UserID.String()))
	return nil
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// AccessToken returns the bearer token of the active session, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

// Subscribe registers fn for auth state changes and returns a func that
// removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SignIn authenticates against the provider and makes the result current.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.nav.Reset()
	m.set(s)
	m.emit(EventSignedIn, s)
	return s, nil
}

// Refresh rotates the tokens of the active session. An authorization
// failure signs the user out.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return nil, ErrNoSession
	}

	s, err := m.provider.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		m.HandleAuthError(ctx, err)
		return nil, err
	}
	// A sign-out or sign-in during the call wins over the rotated tokens.
	if !m.replace(cur, s) {
		return nil, ErrNoSession
	}
	m.emit(EventTokenRefreshed, s)
	return s, nil
}

// SignOut revokes the refresh token, clears the session and, when reason
// is not empty, passes it to the notifier. It is safe to call without a
// session.
func (m *Manager) SignOut(ctx context.Context, reason string) error {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	if cur != nil {
		if err := m.provider.SignOut(ctx, cur.RefreshToken); err != nil && !IsAuthError(err) {
			m.logger.Warn("revoke refresh token", zap.Error(err))
		}
	}
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("clear stored session", zap.Error(err))
		}
	}
	m.nav.Reset()

	if reason != "" {
		m.notify(reason)
	}
	if cur != nil {
		m.emit(EventSignedOut, nil)
	}
	return nil
}

// HandleAuthError signs out when err is an authorization failure and
// reports whether it did.
func (m *Manager) HandleAuthError(ctx context.Context, err error) bool {
	if !IsAuthError(err) {
		return false
	}
	m.logger.Info("authorization failed, signing out", zap.Error(err))
	m.SignOut(ctx, MessageSessionExpired)
	return true
}

// Landing waits for the settle delay and returns the route for the current
// profile. changed is false when the user is already there.
func (m *Manager) Landing(ctx context.Context) (route string, changed bool, err error) {
	if m.settle > 0 {
		t := time.NewTimer(m.settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-t.C:
		}
	}

	cur := m.Current()
	if cur == nil {
		route, changed = m.nav.Navigate("", false)
		return route, changed, nil
	}
	route, changed = m.nav.Navigate(cur.Profile.Role, true)
	return route, changed, nil
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(s); err != nil {
			m.logger.Warn("persist session", zap.Error(err))
		}
	}
}

// replace swaps old for s only if old is still current.
func (m *Manager) replace(old, s *Session) bool {
	m.mu.Lock()
	if m.current != old {
		m.mu.Unlock()
		return false
	}
	m.current = s
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(s); err != nil {
			m.logger.Warn("persist session", zap.Error(err))
		}
	}
	return true
}

func (m *Manager) emit(event Event, s *Session) {
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(event, s)
	}
}
