package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/handler"
	"github.com/comanda-app/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockTableStore struct {
	tables map[uuid.UUID]database.RestaurantTable
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{tables: make(map[uuid.UUID]database.RestaurantTable)}
}

func (m *mockTableStore) numberTaken(companyID, except uuid.UUID, number int32) bool {
	for _, t := range m.tables {
		if t.CompanyID == companyID && t.ID != except && t.Number == number {
			return true
		}
	}
	return false
}

func (m *mockTableStore) ListTablesByCompany(_ context.Context, companyID uuid.UUID) ([]database.RestaurantTable, error) {
	var result []database.RestaurantTable
	for _, t := range m.tables {
		if t.CompanyID == companyID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *mockTableStore) GetTable(_ context.Context, arg database.GetTableParams) (database.RestaurantTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || t.CompanyID != arg.CompanyID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.RestaurantTable, error) {
	if m.numberTaken(arg.CompanyID, uuid.Nil, arg.Number) {
		return database.RestaurantTable{}, &pgconn.PgError{Code: "23505"}
	}
	t := database.RestaurantTable{
		ID:        uuid.New(),
		CompanyID: arg.CompanyID,
		Number:    arg.Number,
		Capacity:  arg.Capacity,
		Status:    database.TableStatusAvailable,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.tables[t.ID] = t
	return t, nil
}

func (m *mockTableStore) UpdateTable(_ context.Context, arg database.UpdateTableParams) (database.RestaurantTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || t.CompanyID != arg.CompanyID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	if m.numberTaken(arg.CompanyID, arg.ID, arg.Number) {
		return database.RestaurantTable{}, &pgconn.PgError{Code: "23505"}
	}
	t.Number = arg.Number
	t.Capacity = arg.Capacity
	m.tables[t.ID] = t
	return t, nil
}

func (m *mockTableStore) UpdateTableStatus(_ context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || t.CompanyID != arg.CompanyID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	m.tables[t.ID] = t
	return t, nil
}

type publishedEvent struct {
	companyID uuid.UUID
	eventType string
	payload   any
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(companyID uuid.UUID, eventType string, payload any) {
	p.events = append(p.events, publishedEvent{companyID: companyID, eventType: eventType, payload: payload})
}

func setupTableRouter(store *mockTableStore, pub service.Publisher) *chi.Mux {
	h := handler.NewTableHandler(store, pub, zap.NewNop())
	r := newAuthRouter()
	r.Route("/companies/{cid}/tables", h.RegisterRoutes)
	return r
}

func seedTable(store *mockTableStore, companyID uuid.UUID, number int32, status database.TableStatus) uuid.UUID {
	id := uuid.New()
	store.tables[id] = database.RestaurantTable{
		ID: id, CompanyID: companyID, Number: number, Capacity: 4,
		Status: status, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	return id
}

func tablesPath(companyID uuid.UUID) string {
	return "/companies/" + companyID.String() + "/tables"
}

// --- Tests ---

func TestTableList(t *testing.T) {
	store := newMockTableStore()
	companyID := uuid.New()
	seedTable(store, companyID, 1, database.TableStatusAvailable)
	seedTable(store, companyID, 2, database.TableStatusOccupied)
	seedTable(store, uuid.New(), 1, database.TableStatusAvailable)
	router := setupTableRouter(store, nil)

	rr := doAuthRequest(t, router, "GET", tablesPath(companyID), nil, testClaims(companyID, enum.RoleWaiter))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if resp := decodeListResponse(t, rr); len(resp) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(resp))
	}
}

func TestTableGet_OtherCompanyNotFound(t *testing.T) {
	store := newMockTableStore()
	companyID := uuid.New()
	id := seedTable(store, uuid.New(), 1, database.TableStatusAvailable)
	router := setupTableRouter(store, nil)

	rr := doAuthRequest(t, router, "GET", tablesPath(companyID)+"/"+id.String(), nil, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestTableCreate_StartsAvailable(t *testing.T) {
	store := newMockTableStore()
	companyID := uuid.New()
	router := setupTableRouter(store, nil)

	rr := doAuthRequest(t, router, "POST", tablesPath(companyID), map[string]interface{}{
		"number": 7, "capacity": 6,
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != "available" {
		t.Errorf("status: got %v, want available", resp["status"])
	}
	if resp["number"] != float64(7) {
		t.Errorf("number: got %v, want 7", resp["number"])
	}
}

func TestTableCreate_DuplicateNumber(t *testing.T) {
	store := newMockTableStore()
	companyID := uuid.New()
	seedTable(store, companyID, 7, database.TableStatusAvailable)
	router := setupTableRouter(store, nil)

	rr := doAuthRequest(t, router, "POST", tablesPath(companyID), map[string]interface{}{
		"number": 7, "capacity": 2,
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestTableCreate_Validation(t *testing.T) {
	companyID := uuid.New()
	router := setupTableRouter(newMockTableStore(), nil)

	for _, body := range []map[string]interface{}{
		{"number": 0, "capacity": 2},
		{"number": 3, "capacity": -1},
	} {
		rr := doAuthRequest(t, router, "POST", tablesPath(companyID), body, testClaims(companyID, enum.RoleAdmin))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%v: status: got %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestTableCreate_CashierForbidden(t *testing.T) {
	companyID := uuid.New()
	router := setupTableRouter(newMockTableStore(), nil)

	rr := doAuthRequest(t, router, "POST", tablesPath(companyID), map[string]interface{}{
		"number": 1, "capacity": 2,
	}, testClaims(companyID, enum.RoleCashier))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestTableUpdate(t *testing.T) {
	store := newMockTableStore()
	companyID := uuid.New()
	id := seedTable(store, companyID, 1, database.TableStatusAvailable)
	router := setupTableRouter(store, nil)

	rr := doAuthRequest(t, router, "PUT", tablesPath(companyID)+"/"+id.String(), map[string]interface{}{
		"number": 10, "capacity": 8,
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if store.tables[id].Number != 10 || store.tables[id].Capacity != 8 {
		t.Errorf("stored table: got %+v", store.tables[id])
	}
}

func TestTableUpdateStatus_PublishesEvent(t *testing.T) {
	store := newMockTableStore()
	pub := &recordingPublisher{}
	companyID := uuid.New()
	id := seedTable(store, companyID, 1, database.TableStatusWaitingPayment)
	router := setupTableRouter(store, pub)

	rr := doAuthRequest(t, router, "PATCH", tablesPath(companyID)+"/"+id.String()+"/status", map[string]interface{}{
		"status": "available",
	}, testClaims(companyID, enum.RoleWaiter))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.tables[id].Status != database.TableStatusAvailable {
		t.Errorf("table status: got %s, want available", store.tables[id].Status)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	if pub.events[0].eventType != service.EventTableStatusChanged || pub.events[0].companyID != companyID {
		t.Errorf("event: got %+v", pub.events[0])
	}
}

func TestTableUpdateStatus_Invalid(t *testing.T) {
	store := newMockTableStore()
	pub := &recordingPublisher{}
	companyID := uuid.New()
	id := seedTable(store, companyID, 1, database.TableStatusOccupied)
	router := setupTableRouter(store, pub)

	rr := doAuthRequest(t, router, "PATCH", tablesPath(companyID)+"/"+id.String()+"/status", map[string]interface{}{
		"status": "dirty",
	}, testClaims(companyID, enum.RoleAdmin))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected no events, got %d", len(pub.events))
	}
}

func TestTableUpdateStatus_KitchenForbidden(t *testing.T) {
	store := newMockTableStore()
	companyID := uuid.New()
	id := seedTable(store, companyID, 1, database.TableStatusOccupied)
	router := setupTableRouter(store, nil)

	rr := doAuthRequest(t, router, "PATCH", tablesPath(companyID)+"/"+id.String()+"/status", map[string]interface{}{
		"status": "available",
	}, testClaims(companyID, enum.RoleKitchen))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
