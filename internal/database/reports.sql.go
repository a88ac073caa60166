package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailySales = `-- name: GetDailySales :many
SELECT
    date_trunc('day', created_at)::date AS sale_date,
    count(*) AS order_count,
    coalesce(sum(total_amount), 0)::numeric(12,2) AS total_revenue,
    count(*) FILTER (WHERE notes LIKE '%[PAGO%') AS paid_count
FROM orders
WHERE company_id = $1
  AND status = 'entregue'
  AND created_at >= $2 AND created_at < $3
GROUP BY sale_date
ORDER BY sale_date
`

type GetDailySalesParams struct {
	CompanyID   uuid.UUID `json:"company_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedAt_2 time.Time `json:"created_at_2"`
}

type GetDailySalesRow struct {
	SaleDate     pgtype.Date    `json:"sale_date"`
	OrderCount   int64          `json:"order_count"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
	PaidCount    int64          `json:"paid_count"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.CompanyID, arg.CreatedAt, arg.CreatedAt_2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailySalesRow
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(
			&i.SaleDate,
			&i.OrderCount,
			&i.TotalRevenue,
			&i.PaidCount,
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

const getProductSales = `-- name: GetProductSales :many
SELECT
    p.id AS product_id,
    p.name AS product_name,
    sum(oi.quantity)::bigint AS quantity_sold,
    sum(oi.subtotal)::numeric(12,2) AS total_revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN products p ON p.id = oi.product_id
WHERE o.company_id = $1
  AND o.status = 'entregue'
  AND o.created_at >= $2 AND o.created_at < $3
GROUP BY p.id, p.name
ORDER BY quantity_sold DESC, total_revenue DESC
LIMIT $4
`

type GetProductSalesParams struct {
	CompanyID   uuid.UUID `json:"company_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedAt_2 time.Time `json:"created_at_2"`
	Limit       int32     `json:"limit"`
}

type GetProductSalesRow struct {
	ProductID    uuid.UUID      `json:"product_id"`
	ProductName  string         `json:"product_name"`
	QuantitySold int64          `json:"quantity_sold"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
}

func (q *Queries) GetProductSales(ctx context.Context, arg GetProductSalesParams) ([]GetProductSalesRow, error) {
	rows, err := q.db.Query(ctx, getProductSales,
		arg.CompanyID,
		arg.CreatedAt,
		arg.CreatedAt_2,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetProductSalesRow
	for rows.Next() {
		var i GetProductSalesRow
		if err := rows.Scan(
			&i.ProductID,
			&i.ProductName,
			&i.QuantitySold,
			&i.TotalRevenue,
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
