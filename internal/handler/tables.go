package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTablesByCompany(ctx context.Context, companyID uuid.UUID) ([]database.RestaurantTable, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.RestaurantTable, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.RestaurantTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error)
}

// TableHandler handles restaurant table endpoints.
type TableHandler struct {
	store     TableStore
	publisher service.Publisher
	logger    *zap.Logger
}

// NewTableHandler creates a new TableHandler. publisher may be nil.
func NewTableHandler(store TableStore, publisher service.Publisher, logger *zap.Logger) *TableHandler {
	return &TableHandler{store: store, publisher: publisher, logger: logger}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted inside: /companies/{cid}/tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Put("/{id}", h.Update)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleWaiter, enum.RoleCashier)).Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type tableRequest struct {
	Number   int32 `json:"number"`
	Capacity int32 `json:"capacity"`
}

type tableStatusRequest struct {
	Status string `json:"status"`
}

type tableResponse = service.TableView

func toTableResponse(t database.RestaurantTable) tableResponse {
	return service.NewTableView(t)
}

func toTableResponsePtr(t *database.RestaurantTable) *tableResponse {
	if t == nil {
		return nil
	}
	resp := toTableResponse(*t)
	return &resp
}

func isValidTableStatus(s database.TableStatus) bool {
	switch s {
	case database.TableStatusAvailable, database.TableStatusOccupied, database.TableStatusWaitingPayment:
		return true
	}
	return false
}

// --- Handlers ---

// List returns every table of the company ordered by number.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	tables, err := h.store.ListTablesByCompany(r.Context(), companyID)
	if err != nil {
		writeInternalError(w, h.logger, "list tables", err)
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, tableID, ok := parseCompanyAndID(w, r, "table")
	if !ok {
		return
	}

	t, err := h.store.GetTable(r.Context(), database.GetTableParams{ID: tableID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		writeInternalError(w, h.logger, "get table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

// Create adds a table. Numbers are unique per company.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTableRequest(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	t, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		CompanyID: companyID,
		Number:    req.Number,
		Capacity:  req.Capacity,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "table number already exists")
			return
		}
		writeInternalError(w, h.logger, "create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(t))
}

// Update changes a table's number and capacity.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, tableID, ok := parseCompanyAndID(w, r, "table")
	if !ok {
		return
	}

	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTableRequest(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	t, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:        tableID,
		CompanyID: companyID,
		Number:    req.Number,
		Capacity:  req.Capacity,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "table number already exists")
			return
		}
		writeInternalError(w, h.logger, "update table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

// UpdateStatus sets a table's status by hand, outside the order workflow.
// Staff use it to repair a table left in the wrong state.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	companyID, tableID, ok := parseCompanyAndID(w, r, "table")
	if !ok {
		return
	}

	var req tableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := database.TableStatus(req.Status)
	if !isValidTableStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	t, err := h.store.UpdateTableStatus(r.Context(), database.UpdateTableStatusParams{
		ID:        tableID,
		CompanyID: companyID,
		Status:    status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		writeInternalError(w, h.logger, "update table status", err)
		return
	}

	if h.publisher != nil {
		h.publisher.Publish(companyID, service.EventTableStatusChanged, toTableResponse(t))
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

func validateTableRequest(req tableRequest) string {
	if req.Number <= 0 {
		return "number must be > 0"
	}
	if req.Capacity < 0 {
		return "capacity must not be negative"
	}
	return ""
}

// parseCompanyAndID reads the {cid} and {id} path params, answering 400
// when either is malformed.
func parseCompanyAndID(w http.ResponseWriter, r *http.Request, entity string) (uuid.UUID, uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+entity+" ID")
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}
