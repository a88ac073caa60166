package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, company_id, category_id, name, description, price, image_url, available, ingredients, deleted_at, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.CompanyID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.ImageUrl,
		&i.Available,
		&i.Ingredients,
		&i.DeletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryProducts(ctx context.Context, sql string, args ...interface{}) ([]Product, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
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

const listProductsByCompany = `-- name: ListProductsByCompany :many
SELECT ` + productColumns + ` FROM products
WHERE company_id = $1
  AND deleted_at IS NULL
  AND ($2::uuid IS NULL OR category_id = $2)
ORDER BY name
`

type ListProductsByCompanyParams struct {
	CompanyID  uuid.UUID   `json:"company_id"`
	CategoryID pgtype.UUID `json:"category_id"`
}

// ListProductsByCompany returns every non-deleted product, available or not.
func (q *Queries) ListProductsByCompany(ctx context.Context, arg ListProductsByCompanyParams) ([]Product, error) {
	return q.queryProducts(ctx, listProductsByCompany, arg.CompanyID, arg.CategoryID)
}

const listAvailableProductsByCompany = `-- name: ListAvailableProductsByCompany :many
SELECT ` + productColumns + ` FROM products
WHERE company_id = $1 AND deleted_at IS NULL AND available = true
ORDER BY name
`

// ListAvailableProductsByCompany backs the customer-facing menu.
func (q *Queries) ListAvailableProductsByCompany(ctx context.Context, companyID uuid.UUID) ([]Product, error) {
	return q.queryProducts(ctx, listAvailableProductsByCompany, companyID)
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
`

type GetProductParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, arg.ID, arg.CompanyID))
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (company_id, category_id, name, description, price, image_url, available, ingredients)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + productColumns + `
`

type CreateProductParams struct {
	CompanyID   uuid.UUID      `json:"company_id"`
	CategoryID  pgtype.UUID    `json:"category_id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	ImageUrl    pgtype.Text    `json:"image_url"`
	Available   bool           `json:"available"`
	Ingredients []string       `json:"ingredients"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.CompanyID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.ImageUrl,
		arg.Available,
		arg.Ingredients,
	))
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products
   SET category_id = $3, name = $4, description = $5, price = $6,
       image_url = $7, available = $8, ingredients = $9, updated_at = now()
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
RETURNING ` + productColumns + `
`

type UpdateProductParams struct {
	ID          uuid.UUID      `json:"id"`
	CompanyID   uuid.UUID      `json:"company_id"`
	CategoryID  pgtype.UUID    `json:"category_id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	ImageUrl    pgtype.Text    `json:"image_url"`
	Available   bool           `json:"available"`
	Ingredients []string       `json:"ingredients"`
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.CompanyID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.ImageUrl,
		arg.Available,
		arg.Ingredients,
	))
}

const setProductAvailability = `-- name: SetProductAvailability :one
UPDATE products SET available = $3, updated_at = now()
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
RETURNING ` + productColumns + `
`

type SetProductAvailabilityParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Available bool      `json:"available"`
}

func (q *Queries) SetProductAvailability(ctx context.Context, arg SetProductAvailabilityParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, setProductAvailability, arg.ID, arg.CompanyID, arg.Available))
}

const softDeleteProduct = `-- name: SoftDeleteProduct :one
UPDATE products SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
RETURNING id
`

type SoftDeleteProductParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) SoftDeleteProduct(ctx context.Context, arg SoftDeleteProductParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteProduct, arg.ID, arg.CompanyID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
