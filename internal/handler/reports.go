package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/queue"
	"github.com/brewqueue/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// maxExportRows caps a single CSV export.
const maxExportRows = 10000

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	QueueStatsByDay(ctx context.Context, arg database.QueueStatsByDayParams) ([]database.QueueStatsByDayRow, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// ReportsHandler handles report endpoints. Days are cut at local midnight
// in the configured café time zone.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore, loc *time.Location) *ReportsHandler {
	return &ReportsHandler{store: store, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/queue-stats", h.QueueStats)
	r.Get("/tickets.csv", h.ExportTickets)
}

// --- Response types ---

type queueStatsDay struct {
	Date            string `json:"date"`
	PickedUp        int64  `json:"picked_up"`
	Expired         int64  `json:"expired"`
	Waiting         int64  `json:"waiting"`
	PickedUpRevenue string `json:"picked_up_revenue"`
	ExpiredRevenue  string `json:"expired_revenue"`
	PickupRate      string `json:"pickup_rate"`
}

type queueStatsResponse struct {
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Days      []queueStatsDay `json:"days"`
	Totals    queueStatsDay   `json:"totals"`
}

// --- Handlers ---

// QueueStats returns per-day ticket outcomes for a date range.
func (h *ReportsHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.QueueStatsByDay(r.Context(), database.QueueStatsByDayParams{
		StartDate: pgtype.Timestamptz{Time: startDate, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: endDate, Valid: true},
		TimeZone:  h.loc.String(),
	})
	if err != nil {
		log.Printf("ERROR: queue stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var (
		totalPicked, totalExpired, totalWaiting int64
		pickedRevenue, expiredRevenue           = decimal.Zero, decimal.Zero
	)
	days := make([]queueStatsDay, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.Day.Valid {
			date = row.Day.Time.Format("2006-01-02")
		}
		picked := numericToDecimal(row.PickedUpRevenue)
		expired := numericToDecimal(row.ExpiredRevenue)
		days[i] = queueStatsDay{
			Date:            date,
			PickedUp:        row.PickedUp,
			Expired:         row.Expired,
			Waiting:         row.Waiting,
			PickedUpRevenue: picked.StringFixed(2),
			ExpiredRevenue:  expired.StringFixed(2),
			PickupRate:      pickupRate(row.PickedUp, row.Expired),
		}
		totalPicked += row.PickedUp
		totalExpired += row.Expired
		totalWaiting += row.Waiting
		pickedRevenue = pickedRevenue.Add(picked)
		expiredRevenue = expiredRevenue.Add(expired)
	}

	writeJSON(w, http.StatusOK, queueStatsResponse{
		StartDate: startDate.Format("2006-01-02"),
		EndDate:   endDate.AddDate(0, 0, -1).Format("2006-01-02"),
		Days:      days,
		Totals: queueStatsDay{
			Date:            "total",
			PickedUp:        totalPicked,
			Expired:         totalExpired,
			Waiting:         totalWaiting,
			PickedUpRevenue: pickedRevenue.StringFixed(2),
			ExpiredRevenue:  expiredRevenue.StringFixed(2),
			PickupRate:      pickupRate(totalPicked, totalExpired),
		},
	})
}

// ExportTickets streams the orders of a date range as CSV, optionally
// filtered by ticket_status.
func (h *ReportsHandler) ExportTickets(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params := database.ListOrdersParams{
		StartDate: pgtype.Timestamptz{Time: startDate, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: endDate, Valid: true},
		Limit:     maxExportRows,
	}
	if s := r.URL.Query().Get("ticket_status"); s != "" {
		status, err := queue.ParseTicketStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket_status"})
			return
		}
		params.TicketStatus = pgtype.Text{String: status.String(), Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: export tickets: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	filename := fmt.Sprintf("tickets_%s_%s.csv",
		startDate.Format("20060102"), endDate.AddDate(0, 0, -1).Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"order_id", "queue_number", "ticket_status", "stage", "customer", "amount", "created_at", "updated_at",
	})
	for _, o := range orders {
		updated := ""
		if o.UpdatedAt.Valid {
			updated = o.UpdatedAt.Time.In(h.loc).Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			o.OrderID,
			o.QueueNumber.String,
			o.QueueNumberStatus,
			service.OrderFlags(o).Current().String(),
			o.UserName,
			numericToString(o.Amount),
			o.CreatedAt.In(h.loc).Format(time.RFC3339),
			updated,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("ERROR: write tickets csv: %v", err)
	}
}

// --- Helpers ---

// pickupRate is the share of closed tickets that were picked up, in percent.
func pickupRate(pickedUp, expired int64) string {
	closed := pickedUp + expired
	if closed == 0 {
		return "0.0"
	}
	return decimal.NewFromInt(pickedUp).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(closed)).
		StringFixed(1)
}

// parseDateRange parses start_date and end_date query params in the café
// time zone. Defaults to the last 30 days.
// Returns (startDate, endDate, error) where endDate is exclusive (next day midnight).
func (h *ReportsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if t, ok, err := parseDay(r, "start_date", h.loc); err != nil {
		return time.Time{}, time.Time{}, err
	} else if ok {
		startDate = t
	}

	if t, ok, err := parseDay(r, "end_date", h.loc); err != nil {
		return time.Time{}, time.Time{}, err
	} else if ok {
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
