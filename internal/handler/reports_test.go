package handler_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/handler"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock Store ---

type mockReportsStore struct {
	stats     []database.QueueStatsByDayRow
	statsErr  error
	statsArg  database.QueueStatsByDayParams
	orders    []database.Order
	ordersErr error
	ordersArg database.ListOrdersParams
}

func (m *mockReportsStore) QueueStatsByDay(_ context.Context, arg database.QueueStatsByDayParams) ([]database.QueueStatsByDayRow, error) {
	m.statsArg = arg
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *mockReportsStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	m.ordersArg = arg
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	return m.orders, nil
}

// --- Test Helpers ---

var wib = time.FixedZone("WIB", 7*60*60)

func toNumeric(s string) pgtype.Numeric {
	d, _ := decimal.NewFromString(s)
	n := pgtype.Numeric{}
	_ = n.Scan(d.String())
	return n
}

func setupReportsRouter(store *mockReportsStore) *chi.Mux {
	h := handler.NewReportsHandler(store, wib)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.Route("/reports", h.RegisterRoutes)
	return r
}

func statsRow(day time.Time, picked, expired, waiting int64, pickedRev, expiredRev string) database.QueueStatsByDayRow {
	return database.QueueStatsByDayRow{
		Day:             pgtype.Date{Time: day, Valid: true},
		PickedUp:        picked,
		Expired:         expired,
		Waiting:         waiting,
		PickedUpRevenue: toNumeric(pickedRev),
		ExpiredRevenue:  toNumeric(expiredRev),
	}
}

// --- Tests ---

func TestQueueStats_Success(t *testing.T) {
	store := &mockReportsStore{
		stats: []database.QueueStatsByDayRow{
			statsRow(time.Date(2025, 7, 26, 0, 0, 0, 0, time.UTC), 8, 2, 0, "360000", "90000"),
			statsRow(time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC), 2, 1, 3, "45000.50", "20000"),
		},
	}
	router := setupReportsRouter(store)

	rr := doAuthRequest(t, router, "GET", "/reports/queue-stats?start_date=2025-07-26&end_date=2025-07-27", nil, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	wantStart := time.Date(2025, 7, 26, 0, 0, 0, 0, wib)
	wantEnd := time.Date(2025, 7, 28, 0, 0, 0, 0, wib)
	if !store.statsArg.StartDate.Time.Equal(wantStart) || !store.statsArg.EndDate.Time.Equal(wantEnd) {
		t.Errorf("range: got %v - %v", store.statsArg.StartDate.Time, store.statsArg.EndDate.Time)
	}
	if store.statsArg.TimeZone != "WIB" {
		t.Errorf("time zone: got %q", store.statsArg.TimeZone)
	}

	var resp struct {
		Days []struct {
			Date            string `json:"date"`
			PickedUp        int64  `json:"picked_up"`
			PickedUpRevenue string `json:"picked_up_revenue"`
			PickupRate      string `json:"pickup_rate"`
		} `json:"days"`
		Totals struct {
			PickedUp        int64  `json:"picked_up"`
			Expired         int64  `json:"expired"`
			Waiting         int64  `json:"waiting"`
			PickedUpRevenue string `json:"picked_up_revenue"`
			ExpiredRevenue  string `json:"expired_revenue"`
			PickupRate      string `json:"pickup_rate"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Days) != 2 {
		t.Fatalf("days: got %d, want 2", len(resp.Days))
	}
	if resp.Days[0].Date != "2025-07-26" || resp.Days[0].PickupRate != "80.0" {
		t.Errorf("day 0: got %+v", resp.Days[0])
	}
	if resp.Days[1].PickedUpRevenue != "45000.50" || resp.Days[1].PickupRate != "66.7" {
		t.Errorf("day 1: got %+v", resp.Days[1])
	}
	if resp.Totals.PickedUp != 10 || resp.Totals.Expired != 3 || resp.Totals.Waiting != 3 {
		t.Errorf("totals: got %+v", resp.Totals)
	}
	if resp.Totals.PickedUpRevenue != "405000.50" || resp.Totals.ExpiredRevenue != "110000.00" {
		t.Errorf("revenue totals: got %s / %s", resp.Totals.PickedUpRevenue, resp.Totals.ExpiredRevenue)
	}
	if resp.Totals.PickupRate != "76.9" {
		t.Errorf("pickup rate: got %s, want 76.9", resp.Totals.PickupRate)
	}
}

func TestQueueStats_Empty(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{stats: []database.QueueStatsByDayRow{}})

	rr := doAuthRequest(t, router, "GET", "/reports/queue-stats?start_date=2025-07-01&end_date=2025-07-02", nil, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	totals := resp["totals"].(map[string]interface{})
	if totals["pickup_rate"] != "0.0" {
		t.Errorf("pickup_rate: got %v", totals["pickup_rate"])
	}
}

func TestQueueStats_InvalidRange(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{})

	for _, q := range []string{
		"?start_date=26-07-2025",
		"?end_date=tomorrow",
		"?start_date=2025-07-28&end_date=2025-07-26",
	} {
		rr := doAuthRequest(t, router, "GET", "/reports/queue-stats"+q, nil, staffClaims())
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestQueueStats_StoreError(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{statsErr: errors.New("db down")})

	rr := doAuthRequest(t, router, "GET", "/reports/queue-stats", nil, staffClaims())
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
}

func TestExportTickets_CSV(t *testing.T) {
	expired := readyOrder("ORD-10")
	expired.QueueNumberStatus = "expired"
	store := &mockReportsStore{orders: []database.Order{readyOrder("ORD-9"), expired}}
	router := setupReportsRouter(store)

	rr := doAuthRequest(t, router, "GET", "/reports/tickets.csv?start_date=2025-07-27&end_date=2025-07-27&ticket_status=expired", nil, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content-type: got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "tickets_20250727_20250727.csv") {
		t.Errorf("content-disposition: got %q", cd)
	}
	if !store.ordersArg.TicketStatus.Valid || store.ordersArg.TicketStatus.String != "expired" {
		t.Errorf("ticket_status filter: got %+v", store.ordersArg.TicketStatus)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows: got %d, want 3", len(records))
	}
	if records[0][0] != "order_id" || records[0][2] != "ticket_status" {
		t.Errorf("header: got %v", records[0])
	}
	row := records[2]
	if row[0] != "ORD-10" || row[1] != "FF1_27072025" || row[2] != "expired" || row[3] != "ready_for_pickup" || row[5] != "45000.00" {
		t.Errorf("row: got %v", row)
	}
	if row[6] != "2025-07-27T18:40:00+07:00" {
		t.Errorf("created_at: got %q", row[6])
	}
}

func TestExportTickets_InvalidStatus(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{})

	rr := doAuthRequest(t, router, "GET", "/reports/tickets.csv?ticket_status=lost", nil, staffClaims())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}
