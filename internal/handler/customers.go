package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CustomerStore defines the database methods needed by customer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	GetCustomer(ctx context.Context, userID string) (database.Customer, error)
	UpsertCustomer(ctx context.Context, arg database.UpsertCustomerParams) (database.Customer, error)
	ClearCustomerDeviceToken(ctx context.Context, userID string) (database.Customer, error)
	ListCustomerOrders(ctx context.Context, arg database.ListCustomerOrdersParams) ([]database.Order, error)
}

// CustomerHandler keeps the customer contact rows the sweep reads push
// tokens from.
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
// Expected to be mounted at /customers.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Upsert)
		r.Delete("/device-token", h.ForgetDevice)
		r.Get("/orders", h.Orders)
	})
}

// --- Request / Response types ---

type upsertCustomerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DeviceToken string `json:"device_token"`
}

type customerResponse struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	HasDeviceToken bool      `json:"has_device_token"`
	CreatedAt      time.Time `json:"created_at"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	return customerResponse{
		UserID:         c.UserID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		HasDeviceToken: c.DeviceToken.Valid && c.DeviceToken.String != "",
		CreatedAt:      c.CreatedAt,
	}
}

// --- Handlers ---

// Get returns a single customer by user ID.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	customer, err := h.store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Upsert creates or updates a customer. An empty device_token keeps the
// token already on file.
func (h *CustomerHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	token := strings.TrimSpace(req.DeviceToken)
	customer, err := h.store.UpsertCustomer(r.Context(), database.UpsertCustomerParams{
		UserID:      chi.URLParam(r, "id"),
		Name:        req.Name,
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		DeviceToken: pgtype.Text{String: token, Valid: token != ""},
	})
	if err != nil {
		log.Printf("ERROR: upsert customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// ForgetDevice handles DELETE /customers/{id}/device-token, sent when the
// customer signs out of the app. Reminders for waiting orders stop being
// delivered; the sweep treats a missing token as nothing to send.
func (h *CustomerHandler) ForgetDevice(w http.ResponseWriter, r *http.Request) {
	customer, err := h.store.ClearCustomerDeviceToken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: clear device token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Orders returns a customer's orders, newest first.
func (h *CustomerHandler) Orders(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	orders, err := h.store.ListCustomerOrders(r.Context(), database.ListCustomerOrdersParams{
		UserID: chi.URLParam(r, "id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list customer orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}
