package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, company_id, name, description, deleted_at, created_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var i Category
	err := row.Scan(
		&i.ID,
		&i.CompanyID,
		&i.Name,
		&i.Description,
		&i.DeletedAt,
		&i.CreatedAt,
	)
	return i, err
}

const listCategoriesByCompany = `-- name: ListCategoriesByCompany :many
SELECT ` + categoryColumns + ` FROM categories
WHERE company_id = $1 AND deleted_at IS NULL
ORDER BY name
`

func (q *Queries) ListCategoriesByCompany(ctx context.Context, companyID uuid.UUID) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategoriesByCompany, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		i, err := scanCategory(rows)
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

const getCategory = `-- name: GetCategory :one
SELECT ` + categoryColumns + ` FROM categories
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
`

type GetCategoryParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) GetCategory(ctx context.Context, arg GetCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategory, arg.ID, arg.CompanyID))
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (company_id, name, description)
VALUES ($1, $2, $3)
RETURNING ` + categoryColumns + `
`

type CreateCategoryParams struct {
	CompanyID   uuid.UUID   `json:"company_id"`
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory, arg.CompanyID, arg.Name, arg.Description))
}

const updateCategory = `-- name: UpdateCategory :one
UPDATE categories SET name = $1, description = $2
WHERE id = $3 AND company_id = $4 AND deleted_at IS NULL
RETURNING ` + categoryColumns + `
`

type UpdateCategoryParams struct {
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	ID          uuid.UUID   `json:"id"`
	CompanyID   uuid.UUID   `json:"company_id"`
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory,
		arg.Name,
		arg.Description,
		arg.ID,
		arg.CompanyID,
	))
}

// The categories_soft_delete_cascade trigger soft-deletes the products.
const softDeleteCategory = `-- name: SoftDeleteCategory :one
UPDATE categories SET deleted_at = now()
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
RETURNING id
`

type SoftDeleteCategoryParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) SoftDeleteCategory(ctx context.Context, arg SoftDeleteCategoryParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteCategory, arg.ID, arg.CompanyID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
