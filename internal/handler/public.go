package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PublicStore defines the database methods behind the customer-facing menu.
// Satisfied by *database.Queries; narrow interface for testability.
type PublicStore interface {
	GetCompany(ctx context.Context, id uuid.UUID) (database.Company, error)
	ListCategoriesByCompany(ctx context.Context, companyID uuid.UUID) ([]database.Category, error)
	ListAvailableProductsByCompany(ctx context.Context, companyID uuid.UUID) ([]database.Product, error)
}

// OrderCreator places an order. Satisfied by *service.OrderService.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// PublicHandler serves unauthenticated customer endpoints.
type PublicHandler struct {
	store  PublicStore
	orders OrderCreator
	logger *zap.Logger
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(store PublicStore, orders OrderCreator, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{store: store, orders: orders, logger: logger}
}

// RegisterRoutes registers customer endpoints.
// Expected to be mounted inside: /public/companies/{cid}
func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Post("/orders", h.PlaceOrder)
}

// --- Request / Response types ---

type menuResponse struct {
	Company    menuCompany       `json:"company"`
	Categories []menuCategory    `json:"categories"`
	Other      []productResponse `json:"uncategorized"`
}

type menuCompany struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	LogoURL *string   `json:"logo_url"`
}

type menuCategory struct {
	categoryResponse
	Products []productResponse `json:"products"`
}

type publicOrderRequest struct {
	CustomerName    string                   `json:"customer_name"`
	CustomerPhone   string                   `json:"customer_phone"`
	CustomerAddress string                   `json:"customer_address"`
	Notes           string                   `json:"notes"`
	Items           []createOrderItemRequest `json:"items"`
}

// --- Handlers ---

// Menu returns the company's categories with their available products.
// Products without a category are listed under "uncategorized".
func (h *PublicHandler) Menu(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	company, err := h.store.GetCompany(r.Context(), companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}
		writeInternalError(w, h.logger, "get company", err)
		return
	}

	categories, err := h.store.ListCategoriesByCompany(r.Context(), companyID)
	if err != nil {
		writeInternalError(w, h.logger, "list categories", err)
		return
	}
	products, err := h.store.ListAvailableProductsByCompany(r.Context(), companyID)
	if err != nil {
		writeInternalError(w, h.logger, "list available products", err)
		return
	}

	byCategory := make(map[uuid.UUID][]productResponse, len(categories))
	other := []productResponse{}
	for _, p := range products {
		if !p.CategoryID.Valid {
			other = append(other, toProductResponse(p))
			continue
		}
		id := uuid.UUID(p.CategoryID.Bytes)
		byCategory[id] = append(byCategory[id], toProductResponse(p))
	}

	menu := menuResponse{
		Company: menuCompany{
			ID:      company.ID,
			Name:    company.Name,
			LogoURL: textPtr(company.LogoUrl),
		},
		Categories: make([]menuCategory, 0, len(categories)),
		Other:      other,
	}
	for _, c := range categories {
		items := byCategory[c.ID]
		if len(items) == 0 {
			continue
		}
		menu.Categories = append(menu.Categories, menuCategory{
			categoryResponse: toCategoryResponse(c),
			Products:         items,
		})
	}

	writeJSON(w, http.StatusOK, menu)
}

// PlaceOrder creates a delivery order on behalf of an anonymous customer.
func (h *PublicHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req publicOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		writeError(w, http.StatusBadRequest, "customer_name is required")
		return
	}
	if strings.TrimSpace(req.CustomerPhone) == "" {
		writeError(w, http.StatusBadRequest, "customer_phone is required")
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), service.CreateOrderRequest{
		CompanyID:       companyID,
		CreatedBy:       uuid.Nil,
		OrderType:       string(database.OrderTypeDelivery),
		Notes:           req.Notes,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Items:           toServiceItems(req.Items),
	})
	if err != nil {
		writeWorkflowError(w, h.logger, "place public order", err)
		return
	}

	resp := toOrderResponse(result.Order)
	resp.Items = toOrderItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, resp)
}
