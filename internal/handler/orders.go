package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/brewqueue/api/internal/queue"
	"github.com/brewqueue/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// QueueServicer defines the service methods needed by order handlers.
// Satisfied by *service.QueueService; narrow interface for testability.
type QueueServicer interface {
	Advance(ctx context.Context, orderID, stage, note string) (database.Order, error)
	AssignQueueNumber(ctx context.Context, orderID string) (database.Order, error)
	ConfirmPickup(ctx context.Context, orderID string) (database.Order, error)
	ScanPickup(ctx context.Context, orderID, code string) (database.Order, error)
	SetTicketStatus(ctx context.Context, orderID, status string) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// Cafe is the pickup location used for order distances.
type Cafe struct {
	Lat float64
	Lng float64
}

// OrderHandler handles order endpoints. Date filters are read as café
// calendar days in loc.
type OrderHandler struct {
	svc   QueueServicer
	store OrderStore
	cafe  Cafe
	loc   *time.Location
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc QueueServicer, store OrderStore, cafe Cafe, loc *time.Location) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, cafe: cafe, loc: loc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/stages", h.Stages)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/stage", h.Advance)
	r.Post("/{id}/queue-number", h.AssignQueueNumber)
	r.Patch("/{id}/ticket-status", h.SetTicketStatus)
	r.Post("/{id}/pickup", h.Pickup)
	r.Post("/{id}/scan", h.Scan)
}

// --- Request / Response types ---

type advanceRequest struct {
	Stage string `json:"stage"`
	Note  string `json:"note"`
}

type ticketStatusRequest struct {
	Status string `json:"status"`
}

type scanRequest struct {
	Code string `json:"code"`
}

type orderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Type      string          `json:"type,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
}

type orderCustomer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type queueStatusResponse struct {
	Accepted       bool `json:"accepted"`
	InProgress     bool `json:"in_progress"`
	AlmostReady    bool `json:"almost_ready"`
	ReadyForPickup bool `json:"ready_for_pickup"`
	PickedUp       bool `json:"picked_up"`
}

type orderResponse struct {
	OrderID           string              `json:"order_id"`
	Amount            string              `json:"amount"`
	Customer          orderCustomer       `json:"customer"`
	Stage             string              `json:"stage"`
	QueueStatus       queueStatusResponse `json:"queue_status"`
	QueueNumber       *string             `json:"queue_number"`
	QueueNumberStatus string              `json:"queue_number_status"`
	CustomNote        *string             `json:"custom_note"`
	PaymentStatus     string              `json:"payment_status"`
	Latitude          *float64            `json:"latitude"`
	Longitude         *float64            `json:"longitude"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         *time.Time          `json:"updated_at"`
}

type orderDetailResponse struct {
	orderResponse
	Items      []orderItem `json:"items"`
	DistanceKm *float64    `json:"distance_km"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int32           `json:"limit"`
	Offset int32           `json:"offset"`
}

type stageResponse struct {
	Stage          string   `json:"stage"`
	SuggestedNotes []string `json:"suggested_notes"`
}

// --- Handlers ---

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	params := database.ListOrdersParams{Limit: limit, Offset: offset}

	if s := r.URL.Query().Get("ticket_status"); s != "" {
		status, err := queue.ParseTicketStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket_status"})
			return
		}
		params.TicketStatus = pgtype.Text{String: status.String(), Valid: true}
	}
	start, ok, err := parseDay(r, "start_date", h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if ok {
		params.StartDate = pgtype.Timestamptz{Time: start, Valid: true}
	}
	end, ok, err := parseDay(r, "end_date", h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if ok {
		params.EndDate = pgtype.Timestamptz{Time: end.AddDate(0, 0, 1), Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Stages handles GET /orders/stages.
func (h *OrderHandler) Stages(w http.ResponseWriter, r *http.Request) {
	resp := make([]stageResponse, len(queue.Stages))
	for i, s := range queue.Stages {
		resp[i] = stageResponse{Stage: s.String(), SuggestedNotes: queue.SuggestedNotes[s]}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := []orderItem{}
	if len(order.Items) > 0 {
		if err := json.Unmarshal(order.Items, &items); err != nil {
			log.Printf("WARN: order %s has unreadable items: %v", orderID, err)
			items = []orderItem{}
		}
	}

	resp := orderDetailResponse{
		orderResponse: dbOrderToResponse(order),
		Items:         items,
	}
	if order.Latitude.Valid && order.Longitude.Valid {
		d := queue.DistanceKm(h.cafe.Lat, h.cafe.Lng, order.Latitude.Float64, order.Longitude.Float64)
		d = math.Round(d*100) / 100
		resp.DistanceKm = &d
	}

	writeJSON(w, http.StatusOK, resp)
}

// Advance handles PATCH /orders/{id}/stage.
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Stage == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stage is required"})
		return
	}

	order, err := h.svc.Advance(r.Context(), chi.URLParam(r, "id"), req.Stage, req.Note)
	if err != nil {
		writeQueueError(w, "advance order", err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// AssignQueueNumber handles POST /orders/{id}/queue-number.
func (h *OrderHandler) AssignQueueNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.AssignQueueNumber(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeQueueError(w, "assign queue number", err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// SetTicketStatus handles PATCH /orders/{id}/ticket-status.
func (h *OrderHandler) SetTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req ticketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.SetTicketStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeQueueError(w, "set ticket status", err)
		return
	}
	log.Printf("ticket status of %s set to %q by %s", order.OrderID, order.QueueNumberStatus, middleware.Actor(r.Context()))
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Pickup handles POST /orders/{id}/pickup.
func (h *OrderHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.ConfirmPickup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeQueueError(w, "confirm pickup", err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Scan handles POST /orders/{id}/scan.
func (h *OrderHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	order, err := h.svc.ScanPickup(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		writeQueueError(w, "scan pickup", err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

const (
	defaultPageSize = 20
	maxPageSize     = 100

	dayLayout = "2006-01-02"
)

// parsePage reads limit and offset. Bad values fall back to the defaults and
// limit is capped at maxPageSize.
func parsePage(r *http.Request) (limit, offset int32) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = int32(min(v, maxPageSize))
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		offset = int32(v)
	}
	return limit, offset
}

// parseDay reads a YYYY-MM-DD query parameter as local midnight in loc.
// ok is false when the parameter is absent.
func parseDay(r *http.Request, key string, loc *time.Location) (day time.Time, ok bool, err error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return time.Time{}, false, nil
	}
	day, err = time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid %s format, use YYYY-MM-DD", key)
	}
	return day, true, nil
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidStage) ||
		errors.Is(err, service.ErrInvalidTicketStatus) ||
		errors.Is(err, service.ErrCodeMismatch)
}

// isConflictError checks if the error means the order is not in a state
// that allows the action, which results in 409 Conflict.
func isConflictError(err error) bool {
	return errors.Is(err, service.ErrTerminal) ||
		errors.Is(err, service.ErrNotWaiting) ||
		errors.Is(err, service.ErrStatusConflict) ||
		errors.Is(err, service.ErrStageRegression) ||
		errors.Is(err, service.ErrAlreadyAssigned)
}

func writeQueueError(w http.ResponseWriter, action string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", action, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func numericToString(n pgtype.Numeric) string {
	return numericToDecimal(n).StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		OrderID: o.OrderID,
		Amount:  numericToString(o.Amount),
		Customer: orderCustomer{
			ID:    o.UserID,
			Name:  o.UserName,
			Email: o.UserEmail,
			Phone: o.UserPhone,
		},
		Stage: service.OrderFlags(o).Current().String(),
		QueueStatus: queueStatusResponse{
			Accepted:       o.Accepted,
			InProgress:     o.InProgress,
			AlmostReady:    o.AlmostReady,
			ReadyForPickup: o.ReadyForPickup,
			PickedUp:       o.PickedUp,
		},
		QueueNumber:       textPtr(o.QueueNumber),
		QueueNumberStatus: o.QueueNumberStatus,
		CustomNote:        textPtr(o.CustomNote),
		PaymentStatus:     o.PaymentStatus,
		CreatedAt:         o.CreatedAt,
	}
	if o.Latitude.Valid {
		resp.Latitude = &o.Latitude.Float64
	}
	if o.Longitude.Valid {
		resp.Longitude = &o.Longitude.Float64
	}
	if o.UpdatedAt.Valid {
		resp.UpdatedAt = &o.UpdatedAt.Time
	}
	return resp
}
