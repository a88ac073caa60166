package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems              = errors.New("items are required")
	ErrInvalidOrderType        = errors.New("invalid order_type")
	ErrInvalidQuantity         = errors.New("quantity must be > 0")
	ErrInvalidProductID        = errors.New("invalid product_id")
	ErrProductNotFound         = errors.New("product not found in company")
	ErrProductUnavailable      = errors.New("product is not available")
	ErrTableRequired           = errors.New("table_id is required for local orders")
	ErrTableNotAllowed         = errors.New("delivery orders cannot reference a table")
	ErrInvalidTableID          = errors.New("invalid table_id")
	ErrTableNotFound           = errors.New("table not found")
	ErrAddressRequired         = errors.New("customer_address is required for delivery orders")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrOrderNotReadyForPayment = errors.New("order not ready for payment")
	ErrOrderAlreadyPaid        = errors.New("order already paid")
	ErrInvalidPaymentMethod    = errors.New("invalid payment_method")
)

// Event types published after a workflow change commits.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderPaid          = "order.paid"
	EventTableStatusChanged = "table.status_changed"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher fans committed changes out to realtime subscribers of a company.
type Publisher interface {
	Publish(companyID uuid.UUID, eventType string, payload any)
}

// OrderStore defines the DB methods needed by the order workflow.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.GetProductForOrderRow, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderNotes(ctx context.Context, arg database.UpdateOrderNotesParams) (database.Order, error)
	GetTableForUpdate(ctx context.Context, arg database.GetTableForUpdateParams) (database.RestaurantTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CompanyID       uuid.UUID
	CreatedBy       uuid.UUID // uuid.Nil for customer orders
	OrderType       string
	TableID         string
	Notes           string
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	Items           []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
}

// CreateOrderResult is the created order with its items and, for local
// orders, the table it occupies.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
	Table *database.RestaurantTable
}

// TransitionRequest asks the workflow to move an order to Status.
type TransitionRequest struct {
	CompanyID uuid.UUID
	OrderID   uuid.UUID
	Status    string
}

// TransitionResult carries the updated order and the table it touched, if any.
type TransitionResult struct {
	Order    database.Order
	Previous database.OrderStatus
	Table    *database.RestaurantTable
}

// FinalizePaymentRequest closes out a delivered order. PaymentMethod may be empty.
type FinalizePaymentRequest struct {
	CompanyID     uuid.UUID
	OrderID       uuid.UUID
	PaymentMethod string
}

// FinalizePaymentResult carries the annotated order and the freed table, if any.
type FinalizePaymentResult struct {
	Order         database.Order
	PaymentMethod string
	Table         *database.RestaurantTable
}

// OrderService handles order business logic.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	publisher Publisher
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, publisher Publisher) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, publisher: publisher}
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// entregue and cancelado are terminal.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPendente:    {database.OrderStatusPreparando, database.OrderStatusCancelado},
	database.OrderStatusPreparando:  {database.OrderStatusSaiuEntrega, database.OrderStatusEntregue, database.OrderStatusCancelado},
	database.OrderStatusSaiuEntrega: {database.OrderStatusEntregue, database.OrderStatusCancelado},
}

// ValidateStatusTransition checks if the transition from current to next is
// allowed for an order of the given type. Dine-in orders are served straight
// from the kitchen, so only they may skip saiu_entrega.
func ValidateStatusTransition(orderType database.OrderType, current, next database.OrderStatus) error {
	if current == database.OrderStatusPreparando && next == database.OrderStatusEntregue &&
		orderType != database.OrderTypeLocal {
		return fmt.Errorf("%w: %s order cannot go from %s to %s", ErrInvalidTransition, orderType, current, next)
	}
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (database.OrderStatus, error) {
	switch st := database.OrderStatus(s); st {
	case database.OrderStatusPendente, database.OrderStatusPreparando,
		database.OrderStatusSaiuEntrega, database.OrderStatusEntregue,
		database.OrderStatusCancelado:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// tableEffect is the table status a local order's new status implies.
// ok is false when the table is left alone.
func tableEffect(next database.OrderStatus) (database.TableStatus, bool) {
	switch next {
	case database.OrderStatusEntregue:
		return database.TableStatusOccupied, true
	case database.OrderStatusCancelado:
		return database.TableStatusAvailable, true
	}
	return "", false
}

// CreateOrder validates, snapshots prices and creates an order with its
// items atomically. A local order marks its table occupied in the same
// transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	tableID := pgtype.UUID{}
	switch orderType {
	case database.OrderTypeLocal:
		if req.TableID == "" {
			return nil, ErrTableRequired
		}
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrInvalidTableID
		}
		tableID = pgtype.UUID{Bytes: tid, Valid: true}
	case database.OrderTypeDelivery:
		if req.TableID != "" {
			return nil, ErrTableNotAllowed
		}
		if strings.TrimSpace(req.CustomerAddress) == "" {
			return nil, ErrAddressRequired
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	var table *database.RestaurantTable
	if tableID.Valid {
		t, err := store.GetTableForUpdate(ctx, database.GetTableForUpdateParams{
			ID:        tableID.Bytes,
			CompanyID: req.CompanyID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}
		table = &t
	}

	total := decimal.Zero
	items := make([]database.CreateOrderItemParams, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{
			ID:        productID,
			CompanyID: req.CompanyID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		if !product.Available {
			return nil, fmt.Errorf("item[%d] %s: %w", i, product.Name, ErrProductUnavailable)
		}

		unitPrice := numericToDecimal(product.Price)
		subtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(subtotal)

		items = append(items, database.CreateOrderItemParams{
			ProductID: productID,
			Quantity:  item.Quantity,
			UnitPrice: decimalToNumeric(unitPrice),
			Subtotal:  decimalToNumeric(subtotal),
		})
	}

	createdBy := pgtype.UUID{}
	if req.CreatedBy != uuid.Nil {
		createdBy = pgtype.UUID{Bytes: req.CreatedBy, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CompanyID:       req.CompanyID,
		TableID:         tableID,
		OrderType:       orderType,
		TotalAmount:     decimalToNumeric(total),
		Notes:           optionalText(StripPaymentMarkers(req.Notes)),
		CustomerName:    optionalText(req.CustomerName),
		CustomerPhone:   optionalText(req.CustomerPhone),
		CustomerAddress: optionalText(req.CustomerAddress),
		CreatedBy:       createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	created := make([]database.OrderItem, 0, len(items))
	for _, params := range items {
		params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, item)
	}

	tableChanged := false
	if table != nil && table.Status != database.TableStatusOccupied {
		t, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:        table.ID,
			CompanyID: req.CompanyID,
			Status:    database.TableStatusOccupied,
		})
		if err != nil {
			return nil, fmt.Errorf("occupy table: %w", err)
		}
		table = &t
		tableChanged = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.ObserveOrderCreated(string(orderType))
	s.publish(req.CompanyID, EventOrderCreated, NewOrderView(order))
	if tableChanged {
		s.publish(req.CompanyID, EventTableStatusChanged, NewTableView(*table))
	}

	return &CreateOrderResult{Order: order, Items: created, Table: table}, nil
}

// Transition moves an order to a new status and applies the table side
// effect of local orders in the same transaction. The order row is locked
// for the duration, so concurrent transitions of one order serialize.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	next, err := ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:        req.OrderID,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := ValidateStatusTransition(current.OrderType, current.Status, next); err != nil {
		return nil, err
	}

	// Order first, then table.
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:        current.ID,
		CompanyID: req.CompanyID,
		Status:    next,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	var table *database.RestaurantTable
	if current.OrderType == database.OrderTypeLocal && current.TableID.Valid {
		if status, ok := tableEffect(next); ok {
			t, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
				ID:        current.TableID.Bytes,
				CompanyID: req.CompanyID,
				Status:    status,
			})
			if err != nil {
				return nil, fmt.Errorf("update table status: %w", err)
			}
			table = &t
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.ObserveOrderTransition(string(current.Status), string(next), string(current.OrderType))
	s.publish(req.CompanyID, EventOrderStatusChanged, NewOrderView(updated))
	if table != nil {
		s.publish(req.CompanyID, EventTableStatusChanged, NewTableView(*table))
	}

	return &TransitionResult{Order: updated, Previous: current.Status, Table: table}, nil
}

// FinalizePayment records payment of a delivered order. The table of a
// local order is freed and a payment marker is appended to the notes; the
// status stays entregue. Nothing is written unless every check passes.
func (s *OrderService) FinalizePayment(ctx context.Context, req FinalizePaymentRequest) (*FinalizePaymentResult, error) {
	method := ""
	if strings.TrimSpace(req.PaymentMethod) != "" {
		m, ok := enum.NormalizePaymentMethod(req.PaymentMethod)
		if !ok {
			return nil, ErrInvalidPaymentMethod
		}
		method = m
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:        req.OrderID,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.Status != database.OrderStatusEntregue {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotReadyForPayment, order.Status)
	}
	if paid, _ := ParsePaymentMarker(order.Notes.String); paid {
		return nil, ErrOrderAlreadyPaid
	}

	var table *database.RestaurantTable
	if order.OrderType == database.OrderTypeLocal && order.TableID.Valid {
		t, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:        order.TableID.Bytes,
			CompanyID: req.CompanyID,
			Status:    database.TableStatusAvailable,
		})
		if err != nil {
			return nil, fmt.Errorf("free table: %w", err)
		}
		table = &t
	}

	updated, err := store.UpdateOrderNotes(ctx, database.UpdateOrderNotesParams{
		ID:        order.ID,
		CompanyID: req.CompanyID,
		Notes:     pgtype.Text{String: AppendPaymentMarker(order.Notes.String, method), Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.ObservePayment(method)
	s.publish(req.CompanyID, EventOrderPaid, NewOrderView(updated))
	if table != nil {
		s.publish(req.CompanyID, EventTableStatusChanged, NewTableView(*table))
	}

	return &FinalizePaymentResult{Order: updated, PaymentMethod: method, Table: table}, nil
}

func (s *OrderService) publish(companyID uuid.UUID, eventType string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(companyID, eventType, payload)
	}
}

// --- Payment marker ---

const paymentMarker = "[PAGO"

var paymentMarkerRe = regexp.MustCompile(`\[PAGO(?: - ([A-Z]+))?\]`)

// AppendPaymentMarker appends "[PAGO]" or "[PAGO - METHOD]" to notes,
// separated from existing text by one space.
func AppendPaymentMarker(notes, method string) string {
	marker := paymentMarker + "]"
	if method != "" {
		marker = paymentMarker + " - " + strings.ToUpper(method) + "]"
	}
	notes = strings.TrimRight(notes, " ")
	if notes == "" {
		return marker
	}
	return notes + " " + marker
}

// StripPaymentMarkers removes anything that reads as a payment marker so
// that only FinalizePayment can mark an order paid.
func StripPaymentMarkers(notes string) string {
	if !paymentMarkerRe.MatchString(notes) {
		return notes
	}
	for paymentMarkerRe.MatchString(notes) {
		notes = paymentMarkerRe.ReplaceAllString(notes, " ")
	}
	return strings.Join(strings.Fields(notes), " ")
}

// ParsePaymentMarker reports whether notes carry a payment marker and the
// lower-cased method it names, if any.
func ParsePaymentMarker(notes string) (bool, string) {
	m := paymentMarkerRe.FindStringSubmatch(notes)
	if m == nil {
		return false, ""
	}
	return true, strings.ToLower(m[1])
}

// --- Helpers ---

func validateOrderType(s string) (database.OrderType, error) {
	switch t := database.OrderType(s); t {
	case database.OrderTypeLocal, database.OrderTypeDelivery:
		return t, nil
	}
	return "", ErrInvalidOrderType
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
