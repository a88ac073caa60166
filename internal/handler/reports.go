package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error)
}

// ReportsHandler handles the admin dashboard report endpoints.
type ReportsHandler struct {
	store  ReportsStore
	logger *zap.Logger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{store: store, logger: logger}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted inside: /companies/{cid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.RoleAdmin))
	r.Get("/daily-sales", h.DailySales)
	r.Get("/product-sales", h.ProductSales)
}

// --- Response types ---

type dailySalesResponse struct {
	Date         string `json:"date"`
	OrderCount   int64  `json:"order_count"`
	PaidCount    int64  `json:"paid_count"`
	TotalRevenue string `json:"total_revenue"`
}

type productSalesResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

// --- Handlers ---

// DailySales returns per-day totals of delivered orders for a date range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		CompanyID:   companyID,
		CreatedAt:   startDate,
		CreatedAt_2: endDate,
	})
	if err != nil {
		writeInternalError(w, h.logger, "get daily sales", err)
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format("2006-01-02")
		}
		resp[i] = dailySalesResponse{
			Date:         date,
			OrderCount:   row.OrderCount,
			PaidCount:    row.PaidCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ProductSales returns the best selling products by quantity and revenue.
func (h *ReportsHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := h.store.GetProductSales(r.Context(), database.GetProductSalesParams{
		CompanyID:   companyID,
		CreatedAt:   startDate,
		CreatedAt_2: endDate,
		Limit:       int32(limit),
	})
	if err != nil {
		writeInternalError(w, h.logger, "get product sales", err)
		return
	}

	resp := make([]productSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
