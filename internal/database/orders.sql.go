package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `order_id, amount, items, user_id, user_name, user_email, user_phone,
	latitude, longitude, accepted, in_progress, almost_ready, ready_for_pickup, picked_up,
	queue_number, queue_number_status, custom_note, payment_status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.OrderID,
		&i.Amount,
		&i.Items,
		&i.UserID,
		&i.UserName,
		&i.UserEmail,
		&i.UserPhone,
		&i.Latitude,
		&i.Longitude,
		&i.Accepted,
		&i.InProgress,
		&i.AlmostReady,
		&i.ReadyForPickup,
		&i.PickedUp,
		&i.QueueNumber,
		&i.QueueNumberStatus,
		&i.CustomNote,
		&i.PaymentStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
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

const createOrder = `-- name: CreateOrder :one
INSERT INTO transactions (
    order_id, amount, items, user_id, user_name, user_email, user_phone,
    latitude, longitude, payment_status, created_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderID       string         `json:"order_id"`
	Amount        pgtype.Numeric `json:"amount"`
	Items         []byte         `json:"items"`
	UserID        string         `json:"user_id"`
	UserName      string         `json:"user_name"`
	UserEmail     string         `json:"user_email"`
	UserPhone     string         `json:"user_phone"`
	Latitude      pgtype.Float8  `json:"latitude"`
	Longitude     pgtype.Float8  `json:"longitude"`
	PaymentStatus string         `json:"payment_status"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderID,
		arg.Amount,
		arg.Items,
		arg.UserID,
		arg.UserName,
		arg.UserEmail,
		arg.UserPhone,
		arg.Latitude,
		arg.Longitude,
		arg.PaymentStatus,
		arg.CreatedAt,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM transactions
WHERE order_id = $1`

func (q *Queries) GetOrder(ctx context.Context, orderID string) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, orderID)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM transactions
WHERE ($1::text IS NULL OR queue_number_status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`

type ListOrdersParams struct {
	TicketStatus pgtype.Text        `json:"ticket_status"`
	StartDate    pgtype.Timestamptz `json:"start_date"`
	EndDate      pgtype.Timestamptz `json:"end_date"`
	Limit        int32              `json:"limit"`
	Offset       int32              `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.TicketStatus,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

const listWaitingForPickup = `-- name: ListWaitingForPickup :many
SELECT ` + orderColumns + `
FROM transactions
WHERE ready_for_pickup AND queue_number_status = 'waiting'
ORDER BY updated_at ASC NULLS LAST`

func (q *Queries) ListWaitingForPickup(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listWaitingForPickup)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

const updateOrderStage = `-- name: UpdateOrderStage :one
UPDATE transactions
SET accepted = $2,
    in_progress = $3,
    almost_ready = $4,
    ready_for_pickup = $5,
    custom_note = COALESCE($6, custom_note),
    updated_at = $7
WHERE order_id = $1 AND queue_number_status = $8
RETURNING ` + orderColumns

// UpdateOrderStageParams carries the full stage flag set. ExpectedStatus is
// the ticket status read before the update; the row is only changed if it
// still matches, otherwise pgx.ErrNoRows is returned.
type UpdateOrderStageParams struct {
	OrderID        string      `json:"order_id"`
	Accepted       bool        `json:"accepted"`
	InProgress     bool        `json:"in_progress"`
	AlmostReady    bool        `json:"almost_ready"`
	ReadyForPickup bool        `json:"ready_for_pickup"`
	CustomNote     pgtype.Text `json:"custom_note"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ExpectedStatus string      `json:"expected_status"`
}

func (q *Queries) UpdateOrderStage(ctx context.Context, arg UpdateOrderStageParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStage,
		arg.OrderID,
		arg.Accepted,
		arg.InProgress,
		arg.AlmostReady,
		arg.ReadyForPickup,
		arg.CustomNote,
		arg.UpdatedAt,
		arg.ExpectedStatus,
	)
	return scanOrder(row)
}

const setOrderQueueNumber = `-- name: SetOrderQueueNumber :one
UPDATE transactions
SET queue_number = $2,
    queue_number_status = 'waiting'
WHERE order_id = $1 AND queue_number_status = $3
RETURNING ` + orderColumns

type SetOrderQueueNumberParams struct {
	OrderID        string `json:"order_id"`
	QueueNumber    string `json:"queue_number"`
	ExpectedStatus string `json:"expected_status"`
}

func (q *Queries) SetOrderQueueNumber(ctx context.Context, arg SetOrderQueueNumberParams) (Order, error) {
	row := q.db.QueryRow(ctx, setOrderQueueNumber, arg.OrderID, arg.QueueNumber, arg.ExpectedStatus)
	return scanOrder(row)
}

const updateTicketStatus = `-- name: UpdateTicketStatus :one
UPDATE transactions
SET queue_number_status = $2,
    picked_up = COALESCE($4, picked_up),
    updated_at = COALESCE($5, updated_at)
WHERE order_id = $1 AND queue_number_status = $3
RETURNING ` + orderColumns

// UpdateTicketStatusParams changes the ticket status conditionally on
// ExpectedStatus. Null PickedUp and UpdatedAt leave the columns as they are.
type UpdateTicketStatusParams struct {
	OrderID        string             `json:"order_id"`
	Status         string             `json:"status"`
	ExpectedStatus string             `json:"expected_status"`
	PickedUp       pgtype.Bool        `json:"picked_up"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateTicketStatus(ctx context.Context, arg UpdateTicketStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateTicketStatus,
		arg.OrderID,
		arg.Status,
		arg.ExpectedStatus,
		arg.PickedUp,
		arg.UpdatedAt,
	)
	return scanOrder(row)
}

const listCustomerOrders = `-- name: ListCustomerOrders :many
SELECT ` + orderColumns + `
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListCustomerOrdersParams struct {
	UserID string `json:"user_id"`
	Limit  int32  `json:"limit"`
	Offset int32  `json:"offset"`
}

func (q *Queries) ListCustomerOrders(ctx context.Context, arg ListCustomerOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listCustomerOrders, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}
