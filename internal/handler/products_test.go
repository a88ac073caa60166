package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// --- Mock store ---

type mockProductStore struct {
	products   map[uuid.UUID]database.Product
	categories map[uuid.UUID]bool
}

func newMockProductStore() *mockProductStore {
	return &mockProductStore{
		products:   make(map[uuid.UUID]database.Product),
		categories: make(map[uuid.UUID]bool),
	}
}

func (m *mockProductStore) checkCategory(id pgtype.UUID) error {
	if id.Valid && !m.categories[uuid.UUID(id.Bytes)] {
		return &pgconn.PgError{Code: "23503"}
	}
	return nil
}

func (m *mockProductStore) ListProductsByCompany(_ context.Context, arg database.ListProductsByCompanyParams) ([]database.Product, error) {
	var result []database.Product
	for _, p := range m.products {
		if p.CompanyID != arg.CompanyID || p.DeletedAt.Valid {
			continue
		}
		if arg.CategoryID.Valid && p.CategoryID != arg.CategoryID {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (m *mockProductStore) GetProduct(_ context.Context, arg database.GetProductParams) (database.Product, error) {
	p, ok := m.products[arg.ID]
	if !ok || p.CompanyID != arg.CompanyID || p.DeletedAt.Valid {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockProductStore) CreateProduct(_ context.Context, arg database.CreateProductParams) (database.Product, error) {
	if err := m.checkCategory(arg.CategoryID); err != nil {
		return database.Product{}, err
	}
	p := database.Product{
		ID:          uuid.New(),
		CompanyID:   arg.CompanyID,
		CategoryID:  arg.CategoryID,
		Name:        arg.Name,
		Description: arg.Description,
		Price:       arg.Price,
		ImageUrl:    arg.ImageUrl,
		Available:   arg.Available,
		Ingredients: arg.Ingredients,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *mockProductStore) UpdateProduct(_ context.Context, arg database.UpdateProductParams) (database.Product, error) {
	p, ok := m.products[arg.ID]
	if !ok || p.CompanyID != arg.CompanyID || p.DeletedAt.Valid {
		return database.Product{}, pgx.ErrNoRows
	}
	if err := m.checkCategory(arg.CategoryID); err != nil {
		return database.Product{}, err
	}
	p.CategoryID = arg.CategoryID
	p.Name = arg.Name
	p.Description = arg.Description
	p.Price = arg.Price
	p.ImageUrl = arg.ImageUrl
	p.Available = arg.Available
	p.Ingredients = arg.Ingredients
	m.products[p.ID] = p
	return p, nil
}

func (m *mockProductStore) SetProductAvailability(_ context.Context, arg database.SetProductAvailabilityParams) (database.Product, error) {
	p, ok := m.products[arg.ID]
	if !ok || p.CompanyID != arg.CompanyID || p.DeletedAt.Valid {
		return database.Product{}, pgx.ErrNoRows
	}
	p.Available = arg.Available
	m.products[p.ID] = p
	return p, nil
}

func (m *mockProductStore) SoftDeleteProduct(_ context.Context, arg database.SoftDeleteProductParams) (uuid.UUID, error) {
	p, ok := m.products[arg.ID]
	if !ok || p.CompanyID != arg.CompanyID || p.DeletedAt.Valid {
		return uuid.Nil, pgx.ErrNoRows
	}
	p.DeletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.products[p.ID] = p
	return p.ID, nil
}

func setupProductRouter(store *mockProductStore) *chi.Mux {
	h := handler.NewProductHandler(store, zap.NewNop())
	r := newAuthRouter()
	r.Route("/companies/{cid}/products", h.RegisterRoutes)
	return r
}

func seedProduct(store *mockProductStore, companyID uuid.UUID, categoryID pgtype.UUID, name, price string, available bool) uuid.UUID {
	id := uuid.New()
	store.products[id] = database.Product{
		ID:         id,
		CompanyID:  companyID,
		CategoryID: categoryID,
		Name:       name,
		Price:      testNumeric(price),
		Available:  available,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	return id
}

func productsPath(companyID uuid.UUID) string {
	return "/companies/" + companyID.String() + "/products"
}

// --- List tests ---

func TestProductList_IncludesUnavailable(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	seedProduct(store, companyID, pgtype.UUID{}, "X-Burger", "25.90", true)
	seedProduct(store, companyID, pgtype.UUID{}, "X-Salada", "27.50", false)
	seedProduct(store, uuid.New(), pgtype.UUID{}, "Outro", "1.00", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "GET", productsPath(companyID), nil, testClaims(companyID, enum.RoleWaiter))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if resp := decodeListResponse(t, rr); len(resp) != 2 {
		t.Fatalf("expected 2 products, got %d", len(resp))
	}
}

func TestProductList_FilterByCategory(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	catID := uuid.New()
	store.categories[catID] = true
	seedProduct(store, companyID, uuidOf(catID), "Coca-Cola", "6.00", true)
	seedProduct(store, companyID, pgtype.UUID{}, "X-Burger", "25.90", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "GET", productsPath(companyID)+"?category_id="+catID.String(), nil, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeListResponse(t, rr)
	if len(resp) != 1 || resp[0]["name"] != "Coca-Cola" {
		t.Fatalf("expected only Coca-Cola, got %v", resp)
	}
}

func TestProductList_InvalidCategoryFilter(t *testing.T) {
	router := setupProductRouter(newMockProductStore())
	companyID := uuid.New()

	rr := doAuthRequest(t, router, "GET", productsPath(companyID)+"?category_id=bogus", nil, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Get tests ---

func TestProductGet_Found(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	id := seedProduct(store, companyID, pgtype.UUID{}, "X-Burger", "25.9", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "GET", productsPath(companyID)+"/"+id.String(), nil, testClaims(companyID, enum.RoleKitchen))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["price"] != "25.90" {
		t.Errorf("price: got %v, want 25.90", resp["price"])
	}
	if ing, ok := resp["ingredients"].([]interface{}); !ok || len(ing) != 0 {
		t.Errorf("ingredients: got %v, want empty list", resp["ingredients"])
	}
}

func TestProductGet_NotFound(t *testing.T) {
	router := setupProductRouter(newMockProductStore())
	companyID := uuid.New()

	rr := doAuthRequest(t, router, "GET", productsPath(companyID)+"/"+uuid.New().String(), nil, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Create tests ---

func TestProductCreate_Valid(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	catID := uuid.New()
	store.categories[catID] = true
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "POST", productsPath(companyID), map[string]interface{}{
		"category_id": catID.String(),
		"name":        "X-Tudo",
		"description": "O maior da casa",
		"price":       "32.5",
		"ingredients": []string{"pao", " carne ", "", "queijo"},
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["price"] != "32.50" {
		t.Errorf("price: got %v, want 32.50", resp["price"])
	}
	if resp["available"] != true {
		t.Errorf("available: got %v, want true by default", resp["available"])
	}
	if resp["category_id"] != catID.String() {
		t.Errorf("category_id: got %v, want %s", resp["category_id"], catID)
	}
	ing, _ := resp["ingredients"].([]interface{})
	if len(ing) != 3 || ing[1] != "carne" {
		t.Errorf("ingredients: got %v, want [pao carne queijo]", resp["ingredients"])
	}
}

func TestProductCreate_Validation(t *testing.T) {
	companyID := uuid.New()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"price": "10.00"}},
		{"missing price", map[string]interface{}{"name": "Suco"}},
		{"bad price", map[string]interface{}{"name": "Suco", "price": "dez"}},
		{"negative price", map[string]interface{}{"name": "Suco", "price": "-1"}},
		{"bad category", map[string]interface{}{"name": "Suco", "price": "8", "category_id": "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockProductStore()
			router := setupProductRouter(store)

			rr := doAuthRequest(t, router, "POST", productsPath(companyID), tt.body, testClaims(companyID, enum.RoleAdmin))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			if len(store.products) != 0 {
				t.Error("expected no product stored")
			}
		})
	}
}

func TestProductCreate_UnknownCategory(t *testing.T) {
	router := setupProductRouter(newMockProductStore())
	companyID := uuid.New()

	rr := doAuthRequest(t, router, "POST", productsPath(companyID), map[string]interface{}{
		"category_id": uuid.New().String(),
		"name":        "Suco",
		"price":       "8.00",
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeResponse(t, rr); resp["error"] != "invalid category_id" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestProductCreate_WaiterForbidden(t *testing.T) {
	router := setupProductRouter(newMockProductStore())
	companyID := uuid.New()

	rr := doAuthRequest(t, router, "POST", productsPath(companyID), map[string]interface{}{
		"name":  "Suco",
		"price": "8.00",
	}, testClaims(companyID, enum.RoleWaiter))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// --- Update / availability / delete ---

func TestProductUpdate_Valid(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	id := seedProduct(store, companyID, pgtype.UUID{}, "Suco", "8.00", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "PUT", productsPath(companyID)+"/"+id.String(), map[string]interface{}{
		"name":      "Suco de laranja",
		"price":     "9.00",
		"available": false,
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	p := store.products[id]
	if p.Name != "Suco de laranja" || p.Available {
		t.Errorf("stored product: got name=%q available=%v", p.Name, p.Available)
	}
}

func TestProductUpdate_NotFound(t *testing.T) {
	router := setupProductRouter(newMockProductStore())
	companyID := uuid.New()

	rr := doAuthRequest(t, router, "PUT", productsPath(companyID)+"/"+uuid.New().String(), map[string]interface{}{
		"name":  "Suco",
		"price": "9.00",
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestProductSetAvailability(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	id := seedProduct(store, companyID, pgtype.UUID{}, "Suco", "8.00", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "PATCH", productsPath(companyID)+"/"+id.String()+"/availability", map[string]interface{}{
		"available": false,
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if store.products[id].Available {
		t.Error("expected product to be unavailable")
	}
}

func TestProductSetAvailability_MissingField(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	id := seedProduct(store, companyID, pgtype.UUID{}, "Suco", "8.00", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "PATCH", productsPath(companyID)+"/"+id.String()+"/availability", map[string]interface{}{}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if !store.products[id].Available {
		t.Error("availability should be unchanged")
	}
}

func TestProductDelete(t *testing.T) {
	store := newMockProductStore()
	companyID := uuid.New()
	id := seedProduct(store, companyID, pgtype.UUID{}, "Suco", "8.00", true)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "DELETE", productsPath(companyID)+"/"+id.String(), nil, testClaims(companyID, enum.RoleAdmin))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = doAuthRequest(t, router, "DELETE", productsPath(companyID)+"/"+id.String(), nil, testClaims(companyID, enum.RoleAdmin))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
