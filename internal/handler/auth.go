package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/comanda-app/api/internal/auth"
	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthServicer defines the identity operations needed by auth handlers.
// Satisfied by *service.IdentityService; narrow interface for testability.
type AuthServicer interface {
	SignUp(ctx context.Context, req service.SignUpRequest) (*service.Session, error)
	SignIn(ctx context.Context, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	Session(ctx context.Context, claims *auth.Claims) (*service.Session, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	svc    AuthServicer
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthServicer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the public auth endpoints on the given Chi router.
// GET /auth/session needs an authenticated router and is mounted separately.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.SignUp)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
}

// --- Request / Response types ---

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type profileResponse struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

type sessionResponse struct {
	AccessToken     string          `json:"access_token,omitempty"`
	RefreshToken    string          `json:"refresh_token,omitempty"`
	ExpiresAt       time.Time       `json:"expires_at"`
	User            sessionUser     `json:"user"`
	Profile         profileResponse `json:"profile"`
	ProfileFallback bool            `json:"profile_fallback"`
	Landing         string          `json:"landing"`
}

type authErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func toProfileResponse(p database.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
	}
}

func toSessionResponse(s *service.Session) sessionResponse {
	return sessionResponse{
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		ExpiresAt:       s.ExpiresAt,
		User:            sessionUser{ID: s.UserID, Email: s.Email},
		Profile:         toProfileResponse(s.Profile),
		ProfileFallback: s.ProfileFallback,
		Landing:         s.Landing,
	}
}

// --- Handlers ---

// SignUp handles POST /auth/signup: a new company with its first admin.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.svc.SignUp(r.Context(), service.SignUpRequest{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		h.writeAuthError(w, "sign up", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// Login handles email + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, "sign in", err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	sess, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeAuthError(w, "refresh session", err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// Logout revokes the refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.svc.SignOut(r.Context(), req.RefreshToken); err != nil {
		h.writeAuthError(w, "sign out", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /auth/session for the bearer of the access token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, authErrorResponse{Error: "not authenticated", Redirect: middleware.AuthRoute})
		return
	}

	sess, err := h.svc.Session(r.Context(), claims)
	if err != nil {
		h.writeAuthError(w, "get session", err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrCredentialsRequired), errors.Is(err, service.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, authErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, service.ErrAccountDisabled):
		writeJSON(w, http.StatusForbidden, authErrorResponse{Error: err.Error(), Redirect: middleware.AuthRoute})
	case errors.Is(err, service.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, authErrorResponse{Error: "session expired", Code: "session_expired", Redirect: middleware.AuthRoute})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeJSON(w, http.StatusUnauthorized, authErrorResponse{Error: err.Error(), Redirect: middleware.AuthRoute})
	default:
		writeInternalError(w, h.logger, op, err)
	}
}
