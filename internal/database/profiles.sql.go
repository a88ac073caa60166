package database

import (
	"context"

	"github.com/google/uuid"
)

const profileColumns = `id, company_id, name, email, role, deleted_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var i Profile
	err := row.Scan(
		&i.ID,
		&i.CompanyID,
		&i.Name,
		&i.Email,
		&i.Role,
		&i.DeletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProfile = `-- name: GetProfile :one
SELECT ` + profileColumns + ` FROM profiles
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfile, id))
}

const createProfile = `-- name: CreateProfile :one
INSERT INTO profiles (id, company_id, name, email, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + profileColumns + `
`

type CreateProfileParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, createProfile,
		arg.ID,
		arg.CompanyID,
		arg.Name,
		arg.Email,
		arg.Role,
	))
}

const listProfilesByCompany = `-- name: ListProfilesByCompany :many
SELECT ` + profileColumns + ` FROM profiles
WHERE company_id = $1 AND deleted_at IS NULL
ORDER BY role, name
`

func (q *Queries) ListProfilesByCompany(ctx context.Context, companyID uuid.UUID) ([]Profile, error) {
	rows, err := q.db.Query(ctx, listProfilesByCompany, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Profile
	for rows.Next() {
		i, err := scanProfile(rows)
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

const updateProfile = `-- name: UpdateProfile :one
UPDATE profiles SET name = $3, role = $4, updated_at = now()
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
RETURNING ` + profileColumns + `
`

type UpdateProfileParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
}

func (q *Queries) UpdateProfile(ctx context.Context, arg UpdateProfileParams) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, updateProfile,
		arg.ID,
		arg.CompanyID,
		arg.Name,
		arg.Role,
	))
}

const softDeleteProfile = `-- name: SoftDeleteProfile :one
UPDATE profiles SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
RETURNING id
`

type SoftDeleteProfileParams struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
}

func (q *Queries) SoftDeleteProfile(ctx context.Context, arg SoftDeleteProfileParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteProfile, arg.ID, arg.CompanyID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const getProfileIncludingDeleted = `-- name: GetProfileIncludingDeleted :one
SELECT ` + profileColumns + ` FROM profiles
WHERE id = $1
`

// GetProfileIncludingDeleted is used by sign-in to tell a removed staff
// account apart from an identity that never had a profile.
func (q *Queries) GetProfileIncludingDeleted(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfileIncludingDeleted, id))
}
