package client

import (
	"context"
	"net/http"
	"time"

	"github.com/comanda-app/api/internal/session"
	"github.com/google/uuid"
)

type sessionBody struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
	Profile struct {
		ID        uuid.UUID `json:"id"`
		CompanyID uuid.UUID `json:"company_id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
	} `json:"profile"`
	Landing string `json:"landing"`
}

func (b sessionBody) toSession() *session.Session {
	return &session.Session{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		ExpiresAt:    b.ExpiresAt,
		UserID:       b.User.ID,
		Email:        b.User.Email,
		Profile: session.Profile{
			ID:        b.Profile.ID,
			CompanyID: b.Profile.CompanyID,
			Name:      b.Profile.Name,
			Email:     b.Profile.Email,
			Role:      b.Profile.Role,
		},
		Landing: b.Landing,
	}
}

// SignUpRequest creates a company and its first admin.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*session.Session, error) {
	var out sessionBody
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, req, &out, false); err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	var out sessionBody
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out, false); err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

// Refresh exchanges refreshToken for a new session. The old token is revoked.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	var out sessionBody
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, body, &out, false); err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, body, nil, false)
}

// Session returns the identity and profile behind the current bearer token.
// The returned session carries no tokens.
func (c *Client) Session(ctx context.Context) (*session.Session, error) {
	var out sessionBody
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

var _ session.IdentityProvider = (*Client)(nil)
