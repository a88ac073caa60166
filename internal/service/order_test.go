package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/comanda-app/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// fakeOrderStore is an in-memory OrderStore. Writes are recorded so tests
// can assert that a failed operation wrote nothing.
type fakeOrderStore struct {
	companyID uuid.UUID
	products  map[uuid.UUID]database.GetProductForOrderRow
	orders    map[uuid.UUID]database.Order
	tables    map[uuid.UUID]database.RestaurantTable
	items     []database.OrderItem

	writes         []string
	updateTableErr error
}

func newFakeStore(companyID uuid.UUID) *fakeOrderStore {
	return &fakeOrderStore{
		companyID: companyID,
		products:  map[uuid.UUID]database.GetProductForOrderRow{},
		orders:    map[uuid.UUID]database.Order{},
		tables:    map[uuid.UUID]database.RestaurantTable{},
	}
}

func (f *fakeOrderStore) GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.GetProductForOrderRow, error) {
	p, ok := f.products[arg.ID]
	if !ok || arg.CompanyID != f.companyID {
		return database.GetProductForOrderRow{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	f.writes = append(f.writes, "CreateOrder")
	o := database.Order{
		ID:              uuid.New(),
		CompanyID:       arg.CompanyID,
		TableID:         arg.TableID,
		OrderType:       arg.OrderType,
		Status:          database.OrderStatusPendente,
		TotalAmount:     arg.TotalAmount,
		Notes:           arg.Notes,
		CustomerName:    arg.CustomerName,
		CustomerPhone:   arg.CustomerPhone,
		CustomerAddress: arg.CustomerAddress,
		CreatedBy:       arg.CreatedBy,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	f.writes = append(f.writes, "CreateOrderItem")
	item := database.OrderItem{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		Quantity:  arg.Quantity,
		UnitPrice: arg.UnitPrice,
		Subtotal:  arg.Subtotal,
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeOrderStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.CompanyID != arg.CompanyID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	f.writes = append(f.writes, "UpdateOrderStatus")
	o := f.orders[arg.ID]
	o.Status = arg.Status
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeOrderStore) UpdateOrderNotes(ctx context.Context, arg database.UpdateOrderNotesParams) (database.Order, error) {
	f.writes = append(f.writes, "UpdateOrderNotes")
	o := f.orders[arg.ID]
	o.Notes = arg.Notes
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeOrderStore) GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.RestaurantTable, error) {
	t, ok := f.tables[arg.ID]
	if !ok || t.CompanyID != arg.CompanyID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeOrderStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error) {
	f.writes = append(f.writes, "UpdateTableStatus")
	if f.updateTableErr != nil {
		return database.RestaurantTable{}, f.updateTableErr
	}
	t := f.tables[arg.ID]
	t.Status = arg.Status
	f.tables[arg.ID] = t
	return t, nil
}

// recordingPublisher captures published event types.
type recordingPublisher struct {
	events   []string
	payloads []any
}

func (p *recordingPublisher) Publish(companyID uuid.UUID, eventType string, payload any) {
	p.events = append(p.events, eventType)
	p.payloads = append(p.payloads, payload)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

type fixture struct {
	svc       *OrderService
	store     *fakeOrderStore
	tx        *mockTx
	pub       *recordingPublisher
	companyID uuid.UUID
	tableID   uuid.UUID
	productID uuid.UUID
}

func newFixture() *fixture {
	companyID := uuid.New()
	store := newFakeStore(companyID)

	tableID := uuid.New()
	store.tables[tableID] = database.RestaurantTable{
		ID: tableID, CompanyID: companyID, Number: 1, Capacity: 4,
		Status: database.TableStatusAvailable,
	}

	productID := uuid.New()
	store.products[productID] = database.GetProductForOrderRow{
		ID: productID, Name: "X-Burger", Price: makeNumeric("25.50"), Available: true,
	}

	tx := &mockTx{}
	pub := &recordingPublisher{}
	svc := NewOrderService(&mockTxBeginner{tx: tx}, func(db database.DBTX) OrderStore { return store }, pub)
	return &fixture{svc: svc, store: store, tx: tx, pub: pub, companyID: companyID, tableID: tableID, productID: productID}
}

// seedOrder inserts an order directly into the fake store.
func (f *fixture) seedOrder(orderType database.OrderType, status database.OrderStatus, withTable bool) uuid.UUID {
	o := database.Order{
		ID:        uuid.New(),
		CompanyID: f.companyID,
		OrderType: orderType,
		Status:    status,
	}
	if withTable {
		o.TableID = pgtype.UUID{Bytes: f.tableID, Valid: true}
	}
	f.store.orders[o.ID] = o
	return o.ID
}

func (f *fixture) setTable(status database.TableStatus) {
	t := f.store.tables[f.tableID]
	t.Status = status
	f.store.tables[f.tableID] = t
}

func (f *fixture) tableStatus() database.TableStatus {
	return f.store.tables[f.tableID].Status
}

// =====================
// CreateOrder
// =====================

func TestCreateOrder_LocalOccupiesTable(t *testing.T) {
	f := newFixture()

	result, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CompanyID: f.companyID,
		CreatedBy: uuid.New(),
		OrderType: "local",
		TableID:   f.tableID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Order.Status != database.OrderStatusPendente {
		t.Errorf("status: got %s, want pendente", result.Order.Status)
	}
	if !numericEquals(result.Order.TotalAmount, "51.00") {
		t.Errorf("total: got %v, want 51.00", numericToDecimal(result.Order.TotalAmount))
	}
	if len(result.Items) != 1 || !numericEquals(result.Items[0].UnitPrice, "25.50") {
		t.Errorf("items: got %+v", result.Items)
	}
	if f.tableStatus() != database.TableStatusOccupied {
		t.Errorf("table: got %s, want occupied", f.tableStatus())
	}
	if !f.tx.committed {
		t.Error("expected commit")
	}
	if strings.Join(f.pub.events, ",") != "order.created,table.status_changed" {
		t.Errorf("events: got %v", f.pub.events)
	}
}

func TestCreateOrder_DeliveryNeverTouchesTables(t *testing.T) {
	f := newFixture()

	result, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CompanyID:       f.companyID,
		OrderType:       "delivery",
		CustomerName:    "Maria",
		CustomerAddress: "Rua A, 10",
		Items:           []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.TableID.Valid {
		t.Error("delivery order must not reference a table")
	}
	if result.Order.CreatedBy.Valid {
		t.Error("customer order must not have created_by")
	}
	for _, w := range f.store.writes {
		if w == "UpdateTableStatus" {
			t.Fatal("delivery order wrote a table status")
		}
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture()
	item := []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}}

	tests := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{"bad type", CreateOrderRequest{OrderType: "takeaway", Items: item}, ErrInvalidOrderType},
		{"no items", CreateOrderRequest{OrderType: "local", TableID: f.tableID.String()}, ErrEmptyItems},
		{"local without table", CreateOrderRequest{OrderType: "local", Items: item}, ErrTableRequired},
		{"local bad table id", CreateOrderRequest{OrderType: "local", TableID: "x", Items: item}, ErrInvalidTableID},
		{"delivery with table", CreateOrderRequest{OrderType: "delivery", TableID: f.tableID.String(), CustomerAddress: "a", Items: item}, ErrTableNotAllowed},
		{"delivery without address", CreateOrderRequest{OrderType: "delivery", Items: item}, ErrAddressRequired},
		{"unknown table", CreateOrderRequest{OrderType: "local", TableID: uuid.NewString(), Items: item}, ErrTableNotFound},
		{"zero quantity", CreateOrderRequest{OrderType: "local", TableID: f.tableID.String(), Items: []CreateOrderItemRequest{{ProductID: f.productID.String()}}}, ErrInvalidQuantity},
		{"bad product id", CreateOrderRequest{OrderType: "local", TableID: f.tableID.String(), Items: []CreateOrderItemRequest{{ProductID: "nope", Quantity: 1}}}, ErrInvalidProductID},
		{"unknown product", CreateOrderRequest{OrderType: "local", TableID: f.tableID.String(), Items: []CreateOrderItemRequest{{ProductID: uuid.NewString(), Quantity: 1}}}, ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.CompanyID = f.companyID
			_, err := f.svc.CreateOrder(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error: got %v, want %v", err, tt.want)
			}
		})
	}
	if len(f.store.writes) != 0 {
		t.Errorf("writes: got %v, want none", f.store.writes)
	}
}

func TestCreateOrder_UnavailableProduct(t *testing.T) {
	f := newFixture()
	p := f.store.products[f.productID]
	p.Available = false
	f.store.products[f.productID] = p

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CompanyID: f.companyID,
		OrderType: "local",
		TableID:   f.tableID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("error: got %v, want ErrProductUnavailable", err)
	}
	if f.tx.committed {
		t.Error("must not commit")
	}
}

func TestCreateOrder_OtherCompanyTable(t *testing.T) {
	f := newFixture()
	otherTable := uuid.New()
	f.store.tables[otherTable] = database.RestaurantTable{ID: otherTable, CompanyID: uuid.New()}

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CompanyID: f.companyID,
		OrderType: "local",
		TableID:   otherTable.String(),
		Items:     []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("error: got %v, want ErrTableNotFound", err)
	}
}

// =====================
// Transition
// =====================

func TestTransition_LocalEntregueOccupiesTable(t *testing.T) {
	f := newFixture()
	f.setTable(database.TableStatusAvailable)
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusSaiuEntrega, true)

	result, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: orderID, Status: "entregue",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.Status != database.OrderStatusEntregue {
		t.Errorf("status: got %s, want entregue", result.Order.Status)
	}
	if f.tableStatus() != database.TableStatusOccupied {
		t.Errorf("table: got %s, want occupied", f.tableStatus())
	}
	if result.Table == nil {
		t.Error("expected touched table in result")
	}
	if result.Previous != database.OrderStatusSaiuEntrega {
		t.Errorf("previous: got %s", result.Previous)
	}
}

func TestTransition_LocalCanceladoFreesTable(t *testing.T) {
	for _, from := range []database.OrderStatus{
		database.OrderStatusPendente, database.OrderStatusPreparando, database.OrderStatusSaiuEntrega,
	} {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture()
			f.setTable(database.TableStatusOccupied)
			orderID := f.seedOrder(database.OrderTypeLocal, from, true)

			if _, err := f.svc.Transition(context.Background(), TransitionRequest{
				CompanyID: f.companyID, OrderID: orderID, Status: "cancelado",
			}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.tableStatus() != database.TableStatusAvailable {
				t.Errorf("table: got %s, want available", f.tableStatus())
			}
		})
	}
}

func TestTransition_IntermediateStatusLeavesTable(t *testing.T) {
	f := newFixture()
	f.setTable(database.TableStatusOccupied)
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusPendente, true)

	result, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: orderID, Status: "preparando",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Table != nil {
		t.Error("preparando must not touch the table")
	}
	if strings.Join(f.store.writes, ",") != "UpdateOrderStatus" {
		t.Errorf("writes: got %v", f.store.writes)
	}
}

func TestTransition_DeliveryNeverTouchesTables(t *testing.T) {
	f := newFixture()
	f.setTable(database.TableStatusOccupied)

	steps := []string{"preparando", "saiu_entrega", "entregue"}
	orderID := f.seedOrder(database.OrderTypeDelivery, database.OrderStatusPendente, false)
	for _, st := range steps {
		if _, err := f.svc.Transition(context.Background(), TransitionRequest{
			CompanyID: f.companyID, OrderID: orderID, Status: st,
		}); err != nil {
			t.Fatalf("%s: unexpected error: %v", st, err)
		}
	}

	cancelID := f.seedOrder(database.OrderTypeDelivery, database.OrderStatusPreparando, false)
	if _, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: cancelID, Status: "cancelado",
	}); err != nil {
		t.Fatalf("cancel: unexpected error: %v", err)
	}

	for _, w := range f.store.writes {
		if w == "UpdateTableStatus" {
			t.Fatal("delivery transition wrote a table status")
		}
	}
	if f.tableStatus() != database.TableStatusOccupied {
		t.Errorf("table: got %s, want unchanged occupied", f.tableStatus())
	}
}

func TestTransition_LocalWithoutTableHasNoSideEffect(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusPreparando, false)

	result, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: orderID, Status: "entregue",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Table != nil {
		t.Error("expected no table")
	}
}

func TestTransition_InvalidTransitions(t *testing.T) {
	tests := []struct {
		orderType database.OrderType
		from      database.OrderStatus
		to        string
	}{
		{database.OrderTypeLocal, database.OrderStatusPendente, "entregue"},
		{database.OrderTypeLocal, database.OrderStatusPendente, "pendente"},
		{database.OrderTypeLocal, database.OrderStatusEntregue, "cancelado"},
		{database.OrderTypeLocal, database.OrderStatusCancelado, "preparando"},
		{database.OrderTypeDelivery, database.OrderStatusPreparando, "entregue"},
		{database.OrderTypeDelivery, database.OrderStatusSaiuEntrega, "preparando"},
	}
	for _, tt := range tests {
		t.Run(string(tt.orderType)+"_"+string(tt.from)+"_"+tt.to, func(t *testing.T) {
			f := newFixture()
			orderID := f.seedOrder(tt.orderType, tt.from, tt.orderType == database.OrderTypeLocal)

			_, err := f.svc.Transition(context.Background(), TransitionRequest{
				CompanyID: f.companyID, OrderID: orderID, Status: tt.to,
			})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("error: got %v, want ErrInvalidTransition", err)
			}
			if len(f.store.writes) != 0 {
				t.Errorf("writes: got %v, want none", f.store.writes)
			}
		})
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusPendente, true)

	_, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: orderID, Status: "pago",
	})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("error: got %v, want ErrInvalidStatus", err)
	}
}

func TestTransition_OrderOfOtherCompany(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusPendente, true)

	_, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: uuid.New(), OrderID: orderID, Status: "preparando",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error: got %v, want ErrOrderNotFound", err)
	}
}

func TestTransition_TableFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.store.updateTableErr = errors.New("deadlock detected")
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusSaiuEntrega, true)

	_, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: orderID, Status: "entregue",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.tx.committed {
		t.Error("transaction must not commit when the table update fails")
	}
	if len(f.pub.events) != 0 {
		t.Errorf("events: got %v, want none", f.pub.events)
	}
}

func TestTransition_CommitFailure(t *testing.T) {
	f := newFixture()
	f.tx.commitErr = errors.New("connection lost")
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusPendente, true)

	_, err := f.svc.Transition(context.Background(), TransitionRequest{
		CompanyID: f.companyID, OrderID: orderID, Status: "preparando",
	})
	if err == nil || !strings.Contains(err.Error(), "commit tx") {
		t.Fatalf("error: got %v, want commit failure", err)
	}
}

func TestTransition_BeginFailure(t *testing.T) {
	store := newFakeStore(uuid.New())
	svc := NewOrderService(&mockTxBeginner{err: errors.New("pool closed")}, func(db database.DBTX) OrderStore { return store }, nil)

	_, err := svc.Transition(context.Background(), TransitionRequest{Status: "preparando"})
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("error: got %v, want begin failure", err)
	}
}

// =====================
// FinalizePayment
// =====================

func TestFinalizePayment_LocalOrder(t *testing.T) {
	f := newFixture()
	f.setTable(database.TableStatusOccupied)
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusEntregue, true)

	result, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: orderID, PaymentMethod: "pix",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.tableStatus() != database.TableStatusAvailable {
		t.Errorf("table: got %s, want available", f.tableStatus())
	}
	if !strings.HasSuffix(result.Order.Notes.String, "[PAGO - PIX]") {
		t.Errorf("notes: got %q", result.Order.Notes.String)
	}
	if result.Order.Status != database.OrderStatusEntregue {
		t.Errorf("status: got %s, want entregue", result.Order.Status)
	}
	if result.PaymentMethod != "pix" {
		t.Errorf("method: got %q", result.PaymentMethod)
	}
}

func TestFinalizePayment_NotDelivered(t *testing.T) {
	for _, st := range []database.OrderStatus{
		database.OrderStatusPendente, database.OrderStatusPreparando,
		database.OrderStatusSaiuEntrega, database.OrderStatusCancelado,
	} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture()
			f.setTable(database.TableStatusOccupied)
			orderID := f.seedOrder(database.OrderTypeLocal, st, true)

			_, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
				CompanyID: f.companyID, OrderID: orderID, PaymentMethod: "dinheiro",
			})
			if !errors.Is(err, ErrOrderNotReadyForPayment) {
				t.Fatalf("error: got %v, want ErrOrderNotReadyForPayment", err)
			}
			if len(f.store.writes) != 0 {
				t.Errorf("writes: got %v, want none", f.store.writes)
			}
			if f.tableStatus() != database.TableStatusOccupied {
				t.Errorf("table: got %s, want occupied", f.tableStatus())
			}
		})
	}
}

func TestFinalizePayment_AlreadyPaid(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusEntregue, true)

	if _, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: orderID,
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	writes := len(f.store.writes)

	_, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: orderID, PaymentMethod: "pix",
	})
	if !errors.Is(err, ErrOrderAlreadyPaid) {
		t.Fatalf("error: got %v, want ErrOrderAlreadyPaid", err)
	}
	if len(f.store.writes) != writes {
		t.Errorf("second payment wrote: %v", f.store.writes[writes:])
	}
}

func TestFinalizePayment_DeliveryOrderLeavesTables(t *testing.T) {
	f := newFixture()
	f.setTable(database.TableStatusOccupied)
	orderID := f.seedOrder(database.OrderTypeDelivery, database.OrderStatusEntregue, false)

	result, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: orderID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Table != nil {
		t.Error("delivery payment must not touch tables")
	}
	if result.Order.Notes.String != "[PAGO]" {
		t.Errorf("notes: got %q, want [PAGO]", result.Order.Notes.String)
	}
}

func TestFinalizePayment_InvalidMethod(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusEntregue, true)

	_, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: orderID, PaymentMethod: "bitcoin",
	})
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("error: got %v, want ErrInvalidPaymentMethod", err)
	}
}

func TestFinalizePayment_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: uuid.New(),
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error: got %v, want ErrOrderNotFound", err)
	}
}

// The walk-through from a fresh local order to a paid one.
func TestOrderLifecycle_LocalScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CompanyID: f.companyID,
		OrderType: "local",
		TableID:   f.tableID.String(),
		Notes:     "sem cebola",
		Items:     []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.Order.ID

	if _, err := f.svc.Transition(ctx, TransitionRequest{CompanyID: f.companyID, OrderID: id, Status: "preparando"}); err != nil {
		t.Fatalf("preparando: %v", err)
	}
	if f.tableStatus() != database.TableStatusOccupied {
		t.Errorf("after preparando: table %s", f.tableStatus())
	}

	if _, err := f.svc.Transition(ctx, TransitionRequest{CompanyID: f.companyID, OrderID: id, Status: "entregue"}); err != nil {
		t.Fatalf("entregue: %v", err)
	}
	if f.tableStatus() != database.TableStatusOccupied {
		t.Errorf("after entregue: table %s, want occupied", f.tableStatus())
	}

	paid, err := f.svc.FinalizePayment(ctx, FinalizePaymentRequest{CompanyID: f.companyID, OrderID: id, PaymentMethod: "pix"})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if f.tableStatus() != database.TableStatusAvailable {
		t.Errorf("after payment: table %s, want available", f.tableStatus())
	}
	if paid.Order.Notes.String != "sem cebola [PAGO - PIX]" {
		t.Errorf("notes: got %q", paid.Order.Notes.String)
	}
	if paid.Order.Status != database.OrderStatusEntregue {
		t.Errorf("status: got %s, want entregue", paid.Order.Status)
	}
}

func TestCreateOrder_NotesCannotCarryPaymentMarker(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CompanyID:       f.companyID,
		OrderType:       "delivery",
		Notes:           "sem cebola [PAGO - PIX]",
		CustomerAddress: "Rua A, 10",
		Items:           []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Order.Notes.String != "sem cebola" {
		t.Errorf("notes: got %q, want %q", created.Order.Notes.String, "sem cebola")
	}
	if view := NewOrderView(created.Order); view.Paid {
		t.Fatal("fresh order reported as paid")
	}

	for _, st := range []string{"preparando", "saiu_entrega", "entregue"} {
		if _, err := f.svc.Transition(ctx, TransitionRequest{CompanyID: f.companyID, OrderID: created.Order.ID, Status: st}); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}

	paid, err := f.svc.FinalizePayment(ctx, FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: created.Order.ID, PaymentMethod: "dinheiro",
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if paid.Order.Notes.String != "sem cebola [PAGO - DINHEIRO]" {
		t.Errorf("notes: got %q", paid.Order.Notes.String)
	}
}

func TestCreateOrder_LocalMarkerInNotesStillFreesTableOnPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CompanyID: f.companyID,
		CreatedBy: uuid.New(),
		OrderType: "local",
		TableID:   f.tableID.String(),
		Notes:     "[PAGO]",
		Items:     []CreateOrderItemRequest{{ProductID: f.productID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Order.Notes.Valid {
		t.Errorf("notes: got %q, want none", created.Order.Notes.String)
	}

	for _, st := range []string{"preparando", "entregue"} {
		if _, err := f.svc.Transition(ctx, TransitionRequest{CompanyID: f.companyID, OrderID: created.Order.ID, Status: st}); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}
	if _, err := f.svc.FinalizePayment(ctx, FinalizePaymentRequest{CompanyID: f.companyID, OrderID: created.Order.ID}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if f.tableStatus() != database.TableStatusAvailable {
		t.Errorf("table: got %s, want available", f.tableStatus())
	}
}

func TestFinalizePayment_PublishesResponseShapes(t *testing.T) {
	f := newFixture()
	f.setTable(database.TableStatusOccupied)
	orderID := f.seedOrder(database.OrderTypeLocal, database.OrderStatusEntregue, true)

	if _, err := f.svc.FinalizePayment(context.Background(), FinalizePaymentRequest{
		CompanyID: f.companyID, OrderID: orderID, PaymentMethod: "pix",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(f.pub.events, ",") != "order.paid,table.status_changed" {
		t.Fatalf("events: got %v", f.pub.events)
	}

	order, ok := f.pub.payloads[0].(OrderView)
	if !ok {
		t.Fatalf("order payload: got %T, want OrderView", f.pub.payloads[0])
	}
	if !order.Paid || order.PaymentMethod == nil || *order.PaymentMethod != "pix" {
		t.Errorf("order payload: paid=%v method=%v", order.Paid, order.PaymentMethod)
	}
	if order.TableID == nil || *order.TableID != f.tableID {
		t.Errorf("table_id: got %v", order.TableID)
	}

	table, ok := f.pub.payloads[1].(TableView)
	if !ok {
		t.Fatalf("table payload: got %T, want TableView", f.pub.payloads[1])
	}
	if table.Status != string(database.TableStatusAvailable) {
		t.Errorf("table payload status: got %s", table.Status)
	}
}

// =====================
// Payment marker helpers
// =====================

func TestAppendPaymentMarker(t *testing.T) {
	tests := []struct {
		notes, method, want string
	}{
		{"", "", "[PAGO]"},
		{"", "pix", "[PAGO - PIX]"},
		{"mesa 4", "dinheiro", "mesa 4 [PAGO - DINHEIRO]"},
		{"mesa 4 ", "", "mesa 4 [PAGO]"},
	}
	for _, tt := range tests {
		if got := AppendPaymentMarker(tt.notes, tt.method); got != tt.want {
			t.Errorf("AppendPaymentMarker(%q, %q): got %q, want %q", tt.notes, tt.method, got, tt.want)
		}
	}
}

func TestParsePaymentMarker(t *testing.T) {
	tests := []struct {
		notes      string
		wantPaid   bool
		wantMethod string
	}{
		{"", false, ""},
		{"sem cebola", false, ""},
		{"[PAGO]", true, ""},
		{"sem cebola [PAGO - CREDITO]", true, "credito"},
	}
	for _, tt := range tests {
		paid, method := ParsePaymentMarker(tt.notes)
		if paid != tt.wantPaid || method != tt.wantMethod {
			t.Errorf("ParsePaymentMarker(%q): got (%v, %q), want (%v, %q)", tt.notes, paid, method, tt.wantPaid, tt.wantMethod)
		}
	}
}

func TestStripPaymentMarkers(t *testing.T) {
	tests := []struct {
		notes, want string
	}{
		{"", ""},
		{"mesa 4", "mesa 4"},
		{"[PAGO]", ""},
		{"sem cebola [PAGO - PIX]", "sem cebola"},
		{"[PAGO] bem passado [PAGO - CREDITO] sem sal", "bem passado sem sal"},
		{"[pago] cliente avisou", "[pago] cliente avisou"},
	}
	for _, tt := range tests {
		got := StripPaymentMarkers(tt.notes)
		if got != tt.want {
			t.Errorf("StripPaymentMarkers(%q): got %q, want %q", tt.notes, got, tt.want)
		}
		if paid, _ := ParsePaymentMarker(got); paid {
			t.Errorf("StripPaymentMarkers(%q) left a marker: %q", tt.notes, got)
		}
	}
}
