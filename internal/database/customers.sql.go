package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getCustomerDeviceToken = `-- name: GetCustomerDeviceToken :one
SELECT device_token FROM customers
WHERE user_id = $1`

func (q *Queries) GetCustomerDeviceToken(ctx context.Context, userID string) (pgtype.Text, error) {
	row := q.db.QueryRow(ctx, getCustomerDeviceToken, userID)
	var deviceToken pgtype.Text
	err := row.Scan(&deviceToken)
	return deviceToken, err
}

const upsertCustomer = `-- name: UpsertCustomer :one
INSERT INTO customers (user_id, name, email, phone, device_token)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET name = EXCLUDED.name,
    email = EXCLUDED.email,
    phone = EXCLUDED.phone,
    device_token = COALESCE(EXCLUDED.device_token, customers.device_token)
RETURNING user_id, name, email, phone, device_token, created_at`

type UpsertCustomerParams struct {
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	DeviceToken pgtype.Text `json:"device_token"`
}

func (q *Queries) UpsertCustomer(ctx context.Context, arg UpsertCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, upsertCustomer,
		arg.UserID,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.DeviceToken,
	)
	var i Customer
	err := row.Scan(
		&i.UserID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.DeviceToken,
		&i.CreatedAt,
	)
	return i, err
}

const getCustomer = `-- name: GetCustomer :one
SELECT user_id, name, email, phone, device_token, created_at
FROM customers
WHERE user_id = $1`

func (q *Queries) GetCustomer(ctx context.Context, userID string) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, userID)
	var i Customer
	err := row.Scan(
		&i.UserID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.DeviceToken,
		&i.CreatedAt,
	)
	return i, err
}

const clearCustomerDeviceToken = `-- name: ClearCustomerDeviceToken :one
UPDATE customers
SET device_token = NULL
WHERE user_id = $1
RETURNING user_id, name, email, phone, device_token, created_at`

func (q *Queries) ClearCustomerDeviceToken(ctx context.Context, userID string) (Customer, error) {
	row := q.db.QueryRow(ctx, clearCustomerDeviceToken, userID)
	var i Customer
	err := row.Scan(
		&i.UserID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.DeviceToken,
		&i.CreatedAt,
	)
	return i, err
}
