package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `id, company_id, number, capacity, status, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (RestaurantTable, error) {
	var i RestaurantTable
	err := row.Scan(
		&i.ID,
		&i.CompanyID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTablesByCompany = `-- name: ListTablesByCompany :many
SELECT ` + tableColumns + ` FROM restaurant_tables
WHERE company_id = $1
ORDER BY number
`

func (q *Queries) ListTablesByCompany(ctx context.Context, companyID uuid.UUID) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTablesByCompany, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RestaurantTable
	for rows.Next() {
		i, err := scanTable(rows)
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

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM restaurant_tables
WHERE id = $1 AND company_id = $2
`

type GetTableParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, arg.ID, arg.CompanyID))
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM restaurant_tables
WHERE id = $1 AND company_id = $2
FOR NO KEY UPDATE
`

type GetTableForUpdateParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) GetTableForUpdate(ctx context.Context, arg GetTableForUpdateParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, arg.ID, arg.CompanyID))
}

const createTable = `-- name: CreateTable :one
INSERT INTO restaurant_tables (company_id, number, capacity)
VALUES ($1, $2, $3)
RETURNING ` + tableColumns + `
`

type CreateTableParams struct {
	CompanyID uuid.UUID `json:"company_id"`
	Number    int32     `json:"number"`
	Capacity  int32     `json:"capacity"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.CompanyID, arg.Number, arg.Capacity))
}

const updateTable = `-- name: UpdateTable :one
UPDATE restaurant_tables SET number = $3, capacity = $4, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + tableColumns + `
`

type UpdateTableParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Number    int32     `json:"number"`
	Capacity  int32     `json:"capacity"`
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, updateTable, arg.ID, arg.CompanyID, arg.Number, arg.Capacity))
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE restaurant_tables SET status = $3, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + tableColumns + `
`

type UpdateTableStatusParams struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Status    TableStatus `json:"status"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.CompanyID, arg.Status))
}
