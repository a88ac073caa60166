// Package session keeps the signed-in state of an API consumer: the
// current tokens and profile, auth state change notifications, periodic
// token refresh and the role based landing route.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors shared with identity provider implementations.
var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
	ErrUnauthorized   = errors.New("unauthorized")
)

// MessageSessionExpired is shown when an authorization failure signs the user out.
const MessageSessionExpired = "session expired, log in again"

// Event is an auth state change.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventSignedOut      Event = "SIGNED_OUT"
)

// Profile is the tenant-scoped profile attached to a session.
type Profile struct {
	ID        uuid.UUID `yaml:"id"`
	CompanyID uuid.UUID `yaml:"company_id"`
	Name      string    `yaml:"name"`
	Email     string    `yaml:"email"`
	Role      string    `yaml:"role"`
}

// Session is an authenticated identity with its tokens.
type Session struct {
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
	UserID       uuid.UUID `yaml:"user_id"`
	Email        string    `yaml:"email"`
	Profile      Profile   `yaml:"profile"`
	Landing      string    `yaml:"landing,omitempty"`
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(d))
}

// IdentityProvider issues and revokes sessions. Implemented by *client.Client.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// Store persists the current session between runs.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// IsAuthError reports whether err means the session is no longer valid.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUnauthorized)
}
