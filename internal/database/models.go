package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type AdminUser struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Customer struct {
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	DeviceToken pgtype.Text `json:"device_token"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Order is a row of the transactions table. Items holds the raw JSONB array.
type Order struct {
	OrderID           string             `json:"order_id"`
	Amount            pgtype.Numeric     `json:"amount"`
	Items             []byte             `json:"items"`
	UserID            string             `json:"user_id"`
	UserName          string             `json:"user_name"`
	UserEmail         string             `json:"user_email"`
	UserPhone         string             `json:"user_phone"`
	Latitude          pgtype.Float8      `json:"latitude"`
	Longitude         pgtype.Float8      `json:"longitude"`
	Accepted          bool               `json:"accepted"`
	InProgress        bool               `json:"in_progress"`
	AlmostReady       bool               `json:"almost_ready"`
	ReadyForPickup    bool               `json:"ready_for_pickup"`
	PickedUp          bool               `json:"picked_up"`
	QueueNumber       pgtype.Text        `json:"queue_number"`
	QueueNumberStatus string             `json:"queue_number_status"`
	CustomNote        pgtype.Text        `json:"custom_note"`
	PaymentStatus     string             `json:"payment_status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type QueueRecord struct {
	OrderID           string      `json:"order_id"`
	Stage             string      `json:"stage"`
	QueueNumber       pgtype.Text `json:"queue_number"`
	QueueNumberStatus string      `json:"queue_number_status"`
	UserID            string      `json:"user_id"`
	UserName          string      `json:"user_name"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
