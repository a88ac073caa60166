package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/comanda-app/api/internal/auth"
	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	Transition(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderStore
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a company-scoped subrouter: /companies/{cid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleWaiter, enum.RoleCashier)).Post("/", h.Create)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType       string                   `json:"order_type"`
	TableID         string                   `json:"table_id"`
	Notes           string                   `json:"notes"`
	CustomerName    string                   `json:"customer_name"`
	CustomerPhone   string                   `json:"customer_phone"`
	CustomerAddress string                   `json:"customer_address"`
	Items           []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type orderResponse struct {
	service.OrderView
	Items []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// transitionResponse is the updated order plus the table the change touched.
// Payments answer with the same shape.
type transitionResponse struct {
	Order orderResponse  `json:"order"`
	Table *tableResponse `json:"table"`
}

// --- Handlers ---

// Create handles POST /companies/{cid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CompanyID:       companyID,
		CreatedBy:       claims.UserID,
		OrderType:       req.OrderType,
		TableID:         req.TableID,
		Notes:           req.Notes,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Items:           toServiceItems(req.Items),
	})
	if err != nil {
		h.writeOrderError(w, "create order", err)
		return
	}

	resp := toOrderResponse(result.Order)
	resp.Items = toOrderItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /companies/{cid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	// Parse pagination
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		CompanyID: companyID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := service.ParseOrderStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		params.Status = database.NullOrderStatus{OrderStatus: st, Valid: true}
	}
	if s := r.URL.Query().Get("type"); s != "" {
		t := database.OrderType(s)
		if t != database.OrderTypeLocal && t != database.OrderTypeDelivery {
			writeError(w, http.StatusBadRequest, "invalid type")
			return
		}
		params.OrderType = database.NullOrderType{OrderType: t, Valid: true}
	}
	if s := r.URL.Query().Get("table_id"); s != "" {
		tid, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid table_id")
			return
		}
		params.TableID = pgtype.UUID{Bytes: tid, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		writeInternalError(w, h.logger, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /companies/{cid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:        orderID,
		CompanyID: companyID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternalError(w, h.logger, "get order", err)
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		writeInternalError(w, h.logger, "list order items", err)
		return
	}

	resp := toOrderResponse(order)
	resp.Items = toOrderItemResponses(items)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /companies/{cid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if req.Status == string(database.OrderStatusCancelado) && !canCancel(middleware.ClaimsFromContext(r.Context())) {
		writeError(w, http.StatusForbidden, "insufficient permissions to cancel orders")
		return
	}

	result, err := h.svc.Transition(r.Context(), service.TransitionRequest{
		CompanyID: companyID,
		OrderID:   orderID,
		Status:    req.Status,
	})
	if err != nil {
		h.writeOrderError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{
		Order: toOrderResponse(result.Order),
		Table: toTableResponsePtr(result.Table),
	})
}

// --- Helpers ---

// Roles allowed to cancel an order. Other staff only advance orders.
var cancelRoles = []string{enum.RoleAdmin, enum.RoleCashier, enum.RoleWaiter}

func canCancel(claims *auth.Claims) bool {
	if claims == nil {
		return false
	}
	return slices.Contains(cancelRoles, claims.Role)
}

func (h *OrderHandler) writeOrderError(w http.ResponseWriter, op string, err error) {
	writeWorkflowError(w, h.logger, op, err)
}

// writeWorkflowError answers with the status of a known workflow error, or
// logs err and answers 500.
func writeWorkflowError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status, ok := orderErrorStatus(err)
	if !ok {
		writeInternalError(w, logger, op, err)
		return
	}
	writeError(w, status, err.Error())
}

// orderErrorStatus maps workflow errors to HTTP status codes.
func orderErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTableNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderNotReadyForPayment),
		errors.Is(err, service.ErrOrderAlreadyPaid):
		return http.StatusConflict, true
	case isValidationError(err):
		return http.StatusBadRequest, true
	}
	return 0, false
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrProductUnavailable) ||
		errors.Is(err, service.ErrTableRequired) ||
		errors.Is(err, service.ErrTableNotAllowed) ||
		errors.Is(err, service.ErrInvalidTableID) ||
		errors.Is(err, service.ErrAddressRequired) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidPaymentMethod)
}

func toServiceItems(items []createOrderItemRequest) []service.CreateOrderItemRequest {
	out := make([]service.CreateOrderItemRequest, len(items))
	for i, item := range items {
		out[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}
	return out
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{OrderView: service.NewOrderView(o)}
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: numericToString(item.UnitPrice),
			Subtotal:  numericToString(item.Subtotal),
		}
	}
	return resp
}
