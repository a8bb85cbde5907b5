package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const adminUserColumns = `id, email, hashed_password, full_name, role, is_active, created_at, updated_at`

func scanAdminUser(row interface{ Scan(...any) error }) (AdminUser, error) {
	var i AdminUser
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createAdminUser = `-- name: CreateAdminUser :one
INSERT INTO admin_users (email, hashed_password, full_name, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + adminUserColumns

type CreateAdminUserParams struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
}

func (q *Queries) CreateAdminUser(ctx context.Context, arg CreateAdminUserParams) (AdminUser, error) {
	row := q.db.QueryRow(ctx, createAdminUser, arg.Email, arg.HashedPassword, arg.FullName, arg.Role)
	return scanAdminUser(row)
}

const getAdminUserByEmail = `-- name: GetAdminUserByEmail :one
SELECT ` + adminUserColumns + `
FROM admin_users
WHERE email = $1 AND is_active = true`

func (q *Queries) GetAdminUserByEmail(ctx context.Context, email string) (AdminUser, error) {
	row := q.db.QueryRow(ctx, getAdminUserByEmail, email)
	return scanAdminUser(row)
}

const getAdminUserByID = `-- name: GetAdminUserByID :one
SELECT ` + adminUserColumns + `
FROM admin_users
WHERE id = $1 AND is_active = true`

func (q *Queries) GetAdminUserByID(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	row := q.db.QueryRow(ctx, getAdminUserByID, id)
	return scanAdminUser(row)
}

const listAdminUsers = `-- name: ListAdminUsers :many
SELECT ` + adminUserColumns + `
FROM admin_users
ORDER BY is_active DESC, created_at`

func (q *Queries) ListAdminUsers(ctx context.Context) ([]AdminUser, error) {
	rows, err := q.db.Query(ctx, listAdminUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []AdminUser{}
	for rows.Next() {
		i, err := scanAdminUser(rows)
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

const setAdminUserRole = `-- name: SetAdminUserRole :one
UPDATE admin_users
SET role = $2, updated_at = now()
WHERE email = $1 AND is_active = true
RETURNING ` + adminUserColumns

type SetAdminUserRoleParams struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (q *Queries) SetAdminUserRole(ctx context.Context, arg SetAdminUserRoleParams) (AdminUser, error) {
	row := q.db.QueryRow(ctx, setAdminUserRole, arg.Email, arg.Role)
	return scanAdminUser(row)
}

const updateAdminUser = `-- name: UpdateAdminUser :one
UPDATE admin_users
SET full_name = $2, role = $3, is_active = COALESCE($4, is_active), updated_at = now()
WHERE id = $1
RETURNING ` + adminUserColumns

type UpdateAdminUserParams struct {
	ID       uuid.UUID   `json:"id"`
	FullName string      `json:"full_name"`
	Role     string      `json:"role"`
	IsActive pgtype.Bool `json:"is_active"`
}

func (q *Queries) UpdateAdminUser(ctx context.Context, arg UpdateAdminUserParams) (AdminUser, error) {
	row := q.db.QueryRow(ctx, updateAdminUser, arg.ID, arg.FullName, arg.Role, arg.IsActive)
	return scanAdminUser(row)
}

const deactivateAdminUser = `-- name: DeactivateAdminUser :one
UPDATE admin_users
SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING ` + adminUserColumns

func (q *Queries) DeactivateAdminUser(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	row := q.db.QueryRow(ctx, deactivateAdminUser, id)
	return scanAdminUser(row)
}

const setAdminUserPassword = `-- name: SetAdminUserPassword :one
UPDATE admin_users
SET hashed_password = $2, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING ` + adminUserColumns

type SetAdminUserPasswordParams struct {
	ID             uuid.UUID `json:"id"`
	HashedPassword string    `json:"hashed_password"`
}

func (q *Queries) SetAdminUserPassword(ctx context.Context, arg SetAdminUserPasswordParams) (AdminUser, error) {
	row := q.db.QueryRow(ctx, setAdminUserPassword, arg.ID, arg.HashedPassword)
	return scanAdminUser(row)
}
