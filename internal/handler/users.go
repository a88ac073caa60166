package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// UserStore defines the database methods needed by staff handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListProfilesByCompany(ctx context.Context, companyID uuid.UUID) ([]database.Profile, error)
	UpdateProfile(ctx context.Context, arg database.UpdateProfileParams) (database.Profile, error)
	SoftDeleteProfile(ctx context.Context, arg database.SoftDeleteProfileParams) (uuid.UUID, error)
}

// StaffCreator provisions a login and a profile in one step.
// Satisfied by *service.IdentityService.
type StaffCreator interface {
	CreateStaff(ctx context.Context, req service.CreateStaffRequest) (database.Profile, error)
}

// UserHandler handles staff profile endpoints.
type UserHandler struct {
	store   UserStore
	creator StaffCreator
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore, creator StaffCreator, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: store, creator: creator, logger: logger}
}

// RegisterRoutes registers staff endpoints on the given Chi router.
// Expected to be mounted inside a company-scoped subrouter: /companies/{cid}/users
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.RoleAdmin))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(p database.Profile) userResponse {
	return userResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// --- Handlers ---

// List returns the active staff of the company.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	profiles, err := h.store.ListProfilesByCompany(r.Context(), companyID)
	if err != nil {
		writeInternalError(w, h.logger, "list users", err)
		return
	}

	resp := make([]userResponse, len(profiles))
	for i, p := range profiles {
		resp[i] = toUserResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a staff member with their own login.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.creator.CreateStaff(r.Context(), service.CreateStaffRequest{
		CompanyID: companyID,
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialsRequired),
			errors.Is(err, service.ErrPasswordTooShort),
			errors.Is(err, service.ErrNameRequired),
			errors.Is(err, service.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeInternalError(w, h.logger, "create user", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(p))
}

// Update changes a staff member's name and role.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := parseCompanyAndID(w, r, "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !enum.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil &&
		claims.UserID == userID && req.Role != enum.RoleAdmin {
		writeError(w, http.StatusBadRequest, "cannot remove your own admin role")
		return
	}

	p, err := h.store.UpdateProfile(r.Context(), database.UpdateProfileParams{
		ID:        userID,
		CompanyID: companyID,
		Name:      req.Name,
		Role:      req.Role,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(w, h.logger, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(p))
}

// Delete soft-deletes a staff profile. The login stays but sign-in is refused.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := parseCompanyAndID(w, r, "user")
	if !ok {
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == userID {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	_, err := h.store.SoftDeleteProfile(r.Context(), database.SoftDeleteProfileParams{
		ID:        userID,
		CompanyID: companyID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(w, h.logger, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
