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
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProductsByCompany(ctx context.Context, arg database.ListProductsByCompanyParams) ([]database.Product, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SetProductAvailability(ctx context.Context, arg database.SetProductAvailabilityParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, arg database.SoftDeleteProductParams) (uuid.UUID, error)
}

// ProductHandler handles product CRUD endpoints.
type ProductHandler struct {
	store  ProductStore
	logger *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{store: store, logger: logger}
}

// RegisterRoutes registers product CRUD endpoints on the given Chi router.
// Expected to be mounted inside a company-scoped subrouter: /companies/{cid}/products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.RoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Patch("/{id}/availability", h.SetAvailability)
		r.Delete("/{id}", h.Delete)
	})
}

// --- Request / Response types ---

type productRequest struct {
	CategoryID  *string  `json:"category_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	ImageURL    string   `json:"image_url"`
	Available   *bool    `json:"available"`
	Ingredients []string `json:"ingredients"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

type productResponse struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   uuid.UUID  `json:"company_id"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Price       string     `json:"price"`
	ImageURL    *string    `json:"image_url"`
	Available   bool       `json:"available"`
	Ingredients []string   `json:"ingredients"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	ingredients := p.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return productResponse{
		ID:          p.ID,
		CompanyID:   p.CompanyID,
		CategoryID:  uuidPtr(p.CategoryID),
		Name:        p.Name,
		Description: textPtr(p.Description),
		Price:       numericToString(p.Price),
		ImageURL:    textPtr(p.ImageUrl),
		Available:   p.Available,
		Ingredients: ingredients,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// productFields is the validated form of a productRequest.
type productFields struct {
	categoryID  pgtype.UUID
	name        string
	description pgtype.Text
	price       pgtype.Numeric
	imageURL    pgtype.Text
	available   bool
	ingredients []string
}

func parseProductRequest(req productRequest) (productFields, string) {
	var f productFields

	f.name = strings.TrimSpace(req.Name)
	if f.name == "" {
		return f, "name is required"
	}
	if req.Price == "" {
		return f, "price is required"
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return f, err.Error()
	}
	f.price = price

	if req.CategoryID != nil && *req.CategoryID != "" {
		id, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			return f, "invalid category_id"
		}
		f.categoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	f.description = optionalText(strings.TrimSpace(req.Description))
	f.imageURL = optionalText(strings.TrimSpace(req.ImageURL))
	f.available = true
	if req.Available != nil {
		f.available = *req.Available
	}

	f.ingredients = make([]string, 0, len(req.Ingredients))
	for _, ing := range req.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			f.ingredients = append(f.ingredients, ing)
		}
	}
	return f, ""
}

// --- Handlers ---

// List returns every non-deleted product of the company, including
// unavailable ones. An optional category_id query param narrows the list.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	params := database.ListProductsByCompanyParams{CompanyID: companyID}
	if s := r.URL.Query().Get("category_id"); s != "" {
		catID, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: catID, Valid: true}
	}

	products, err := h.store.ListProductsByCompany(r.Context(), params)
	if err != nil {
		writeInternalError(w, h.logger, "list products", err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r, "product")
	if !ok {
		return
	}

	p, err := h.store.GetProduct(r.Context(), database.GetProductParams{ID: productID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, h.logger, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// Create adds a product. Products are available unless the request says otherwise.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, msg := parseProductRequest(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		CompanyID:   companyID,
		CategoryID:  f.categoryID,
		Name:        f.name,
		Description: f.description,
		Price:       f.price,
		ImageUrl:    f.imageURL,
		Available:   f.available,
		Ingredients: f.ingredients,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		writeInternalError(w, h.logger, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// Update replaces every editable field of a product.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r, "product")
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, msg := parseProductRequest(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:          productID,
		CompanyID:   companyID,
		CategoryID:  f.categoryID,
		Name:        f.name,
		Description: f.description,
		Price:       f.price,
		ImageUrl:    f.imageURL,
		Available:   f.available,
		Ingredients: f.ingredients,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		writeInternalError(w, h.logger, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// SetAvailability hides or shows a product on the customer menu.
func (h *ProductHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r, "product")
	if !ok {
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Available == nil {
		writeError(w, http.StatusBadRequest, "available is required")
		return
	}

	p, err := h.store.SetProductAvailability(r.Context(), database.SetProductAvailabilityParams{
		ID:        productID,
		CompanyID: companyID,
		Available: *req.Available,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, h.logger, "set product availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// Delete soft-deletes a product. Past order items keep referencing it.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r, "product")
	if !ok {
		return
	}

	_, err := h.store.SoftDeleteProduct(r.Context(), database.SoftDeleteProductParams{
		ID:        productID,
		CompanyID: companyID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, h.logger, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
