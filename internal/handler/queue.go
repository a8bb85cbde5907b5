package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/enum"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/brewqueue/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// QueueBoardStore defines the database methods needed by the queue board.
// Satisfied by *database.Queries; narrow interface for testability.
type QueueBoardStore interface {
	ListQueueRecordsByStatus(ctx context.Context, status string) ([]database.QueueRecord, error)
}

// SweepRunner triggers one expiry sweep. Satisfied by *service.Sweeper.
type SweepRunner interface {
	RunOnce(ctx context.Context) (service.SweepResult, error)
}

// QueueHandler serves the pickup board and manual sweeps.
type QueueHandler struct {
	store   QueueBoardStore
	sweeper SweepRunner
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(store QueueBoardStore, sweeper SweepRunner) *QueueHandler {
	return &QueueHandler{store: store, sweeper: sweeper}
}

// RegisterRoutes registers the read-only board endpoint.
// Expected to be mounted at /queue.
func (h *QueueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/waiting", h.Waiting)
}

// RegisterAdminRoutes registers endpoints that change ticket state in bulk.
// Expected to be mounted at /queue behind RequireRole("admin").
func (h *QueueHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/sweep", h.Sweep)
}

type boardEntry struct {
	OrderID     string    `json:"order_id"`
	QueueNumber *string   `json:"queue_number"`
	Stage       string    `json:"stage"`
	UserName    string    `json:"user_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Waiting handles GET /queue/waiting. Entries are oldest first.
func (h *QueueHandler) Waiting(w http.ResponseWriter, r *http.Request) {
	entries, err := h.board(r.Context())
	if err != nil {
		log.Printf("ERROR: list waiting queue: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Snapshot returns the waiting board as sent to display screens when they
// connect.
func (h *QueueHandler) Snapshot(ctx context.Context) (any, error) {
	return h.board(ctx)
}

func (h *QueueHandler) board(ctx context.Context) ([]boardEntry, error) {
	records, err := h.store.ListQueueRecordsByStatus(ctx, enum.TicketStatusWaiting)
	if err != nil {
		return nil, err
	}

	entries := make([]boardEntry, len(records))
	for i, rec := range records {
		entries[i] = boardEntry{
			OrderID:     rec.OrderID,
			QueueNumber: textPtr(rec.QueueNumber),
			Stage:       rec.Stage,
			UserName:    rec.UserName,
			UpdatedAt:   rec.UpdatedAt,
		}
	}
	return entries, nil
}

// Sweep handles POST /queue/sweep.
func (h *QueueHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		log.Printf("ERROR: manual sweep: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
		return
	}
	log.Printf("manual sweep by %s", middleware.Actor(r.Context()))
	writeJSON(w, http.StatusOK, res)
}
