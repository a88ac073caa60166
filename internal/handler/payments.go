package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentServicer defines the service method needed by the payment handler.
// Satisfied by *service.OrderService.
type PaymentServicer interface {
	FinalizePayment(ctx context.Context, req service.FinalizePaymentRequest) (*service.FinalizePaymentResult, error)
}

// PaymentHandler closes out delivered orders.
type PaymentHandler struct {
	svc    PaymentServicer
	logger *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the payment endpoint.
// Expected to be mounted inside: /companies/{cid}/orders/{id}/payment
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleCashier)).Post("/", h.Pay)
}

type paymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Pay handles POST /companies/{cid}/orders/{id}/payment. The body is
// optional; without one the payment is recorded with no method.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
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

	var req paymentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.svc.FinalizePayment(r.Context(), service.FinalizePaymentRequest{
		CompanyID:     companyID,
		OrderID:       orderID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeWorkflowError(w, h.logger, "finalize payment", err)
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{
		Order: toOrderResponse(result.Order),
		Table: toTableResponsePtr(result.Table),
	})
}
