package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createCompany = `-- name: CreateCompany :one
INSERT INTO companies (name)
VALUES ($1)
RETURNING id, name, logo_url, created_at
`

func (q *Queries) CreateCompany(ctx context.Context, name string) (Company, error) {
	row := q.db.QueryRow(ctx, createCompany, name)
	var i Company
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.LogoUrl,
		&i.CreatedAt,
	)
	return i, err
}

const getCompany = `-- name: GetCompany :one
SELECT id, name, logo_url, created_at FROM companies
WHERE id = $1
`

func (q *Queries) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	row := q.db.QueryRow(ctx, getCompany, id)
	var i Company
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.LogoUrl,
		&i.CreatedAt,
	)
	return i, err
}

const updateCompanyLogo = `-- name: UpdateCompanyLogo :one
UPDATE companies SET logo_url = $2
WHERE id = $1
RETURNING id, name, logo_url, created_at
`

type UpdateCompanyLogoParams struct {
	ID      uuid.UUID   `json:"id"`
	LogoUrl pgtype.Text `json:"logo_url"`
}

func (q *Queries) UpdateCompanyLogo(ctx context.Context, arg UpdateCompanyLogoParams) (Company, error) {
	row := q.db.QueryRow(ctx, updateCompanyLogo, arg.ID, arg.LogoUrl)
	var i Company
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.LogoUrl,
		&i.CreatedAt,
	)
	return i, err
}
