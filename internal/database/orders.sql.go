package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, company_id, table_id, order_type, status, total_amount, notes, customer_name, customer_phone, customer_address, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CompanyID,
		&i.TableID,
		&i.OrderType,
		&i.Status,
		&i.TotalAmount,
		&i.Notes,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.CustomerAddress,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    company_id, table_id, order_type, total_amount, notes,
    customer_name, customer_phone, customer_address, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns + `
`

type CreateOrderParams struct {
	CompanyID       uuid.UUID      `json:"company_id"`
	TableID         pgtype.UUID    `json:"table_id"`
	OrderType       OrderType      `json:"order_type"`
	TotalAmount     pgtype.Numeric `json:"total_amount"`
	Notes           pgtype.Text    `json:"notes"`
	CustomerName    pgtype.Text    `json:"customer_name"`
	CustomerPhone   pgtype.Text    `json:"customer_phone"`
	CustomerAddress pgtype.Text    `json:"customer_address"`
	CreatedBy       pgtype.UUID    `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CompanyID,
		arg.TableID,
		arg.OrderType,
		arg.TotalAmount,
		arg.Notes,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.CustomerAddress,
		arg.CreatedBy,
	))
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, product_id, quantity, unit_price, subtotal, created_at
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID      `json:"order_id"`
	ProductID uuid.UUID      `json:"product_id"`
	Quantity  int32          `json:"quantity"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Subtotal  pgtype.Numeric `json:"subtotal"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.CreatedAt,
	)
	return i, err
}

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT id, name, price, available FROM products
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
`

type GetProductForOrderParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

type GetProductForOrderRow struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Price     pgtype.Numeric `json:"price"`
	Available bool           `json:"available"`
}

func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (GetProductForOrderRow, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, arg.ID, arg.CompanyID)
	var i GetProductForOrderRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Available,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1 AND company_id = $2
`

type GetOrderParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.CompanyID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1 AND company_id = $2
FOR UPDATE
`

type GetOrderForUpdateParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.CompanyID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE company_id = $1
  AND ($2::order_status IS NULL OR status = $2)
  AND ($3::order_type IS NULL OR order_type = $3)
  AND ($4::uuid IS NULL OR table_id = $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6
`

type ListOrdersParams struct {
	CompanyID uuid.UUID       `json:"company_id"`
	Status    NullOrderStatus `json:"status"`
	OrderType NullOrderType   `json:"order_type"`
	TableID   pgtype.UUID     `json:"table_id"`
	Limit     int32           `json:"limit"`
	Offset    int32           `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.CompanyID,
		arg.Status,
		arg.OrderType,
		arg.TableID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.Quantity,
			&i.UnitPrice,
			&i.Subtotal,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + orderColumns + `
`

type UpdateOrderStatusParams struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Status    OrderStatus `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.CompanyID, arg.Status))
}

const updateOrderNotes = `-- name: UpdateOrderNotes :one
UPDATE orders SET notes = $3, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + orderColumns + `
`

type UpdateOrderNotesParams struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Notes     pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateOrderNotes(ctx context.Context, arg UpdateOrderNotesParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderNotes, arg.ID, arg.CompanyID, arg.Notes))
}
