package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/handler"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock Store ---

type mockCustomerStore struct {
	customers map[string]database.Customer
	orders    []database.Order
	ordersArg database.ListCustomerOrdersParams
	upsertErr error
}

func newMockCustomerStore() *mockCustomerStore {
	return &mockCustomerStore{customers: make(map[string]database.Customer)}
}

func (m *mockCustomerStore) GetCustomer(_ context.Context, userID string) (database.Customer, error) {
	c, ok := m.customers[userID]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockCustomerStore) UpsertCustomer(_ context.Context, arg database.UpsertCustomerParams) (database.Customer, error) {
	if m.upsertErr != nil {
		return database.Customer{}, m.upsertErr
	}
	c, ok := m.customers[arg.UserID]
	if !ok {
		c = database.Customer{UserID: arg.UserID, CreatedAt: time.Now()}
	}
	c.Name, c.Email, c.Phone = arg.Name, arg.Email, arg.Phone
	if arg.DeviceToken.Valid {
		c.DeviceToken = arg.DeviceToken
	}
	m.customers[arg.UserID] = c
	return c, nil
}

func (m *mockCustomerStore) ClearCustomerDeviceToken(_ context.Context, userID string) (database.Customer, error) {
	c, ok := m.customers[userID]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	c.DeviceToken = pgtype.Text{}
	m.customers[userID] = c
	return c, nil
}

func (m *mockCustomerStore) ListCustomerOrders(_ context.Context, arg database.ListCustomerOrdersParams) ([]database.Order, error) {
	m.ordersArg = arg
	return m.orders, nil
}

func setupCustomerRouter(store *mockCustomerStore) *chi.Mux {
	h := handler.NewCustomerHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.Route("/customers", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestCustomerUpsert_RegistersToken(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/customers/cust-1", map[string]string{
		"name":         "Sari",
		"email":        "sari@example.com",
		"phone":        "081234567890",
		"device_token": "device-abc",
	}, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["has_device_token"] != true {
		t.Errorf("has_device_token: got %v", resp["has_device_token"])
	}
	if store.customers["cust-1"].DeviceToken.String != "device-abc" {
		t.Errorf("stored token: got %q", store.customers["cust-1"].DeviceToken.String)
	}
}

func TestCustomerUpsert_EmptyTokenKeepsExisting(t *testing.T) {
	store := newMockCustomerStore()
	store.customers["cust-1"] = database.Customer{
		UserID:      "cust-1",
		Name:        "Sari",
		DeviceToken: pgtype.Text{String: "device-abc", Valid: true},
	}
	router := setupCustomerRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/customers/cust-1", map[string]string{"name": "Sari W."}, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	c := store.customers["cust-1"]
	if c.Name != "Sari W." || c.DeviceToken.String != "device-abc" {
		t.Errorf("customer: got %+v", c)
	}
}

func TestCustomerUpsert_MissingName(t *testing.T) {
	router := setupCustomerRouter(newMockCustomerStore())

	rr := doAuthRequest(t, router, "PUT", "/customers/cust-1", map[string]string{"name": "  "}, staffClaims())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCustomerUpsert_StoreError(t *testing.T) {
	store := newMockCustomerStore()
	store.upsertErr = errors.New("db down")
	router := setupCustomerRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/customers/cust-1", map[string]string{"name": "Sari"}, staffClaims())
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
}

func TestCustomerGet_NotFound(t *testing.T) {
	router := setupCustomerRouter(newMockCustomerStore())

	rr := doAuthRequest(t, router, "GET", "/customers/nobody", nil, staffClaims())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestCustomerOrders(t *testing.T) {
	store := newMockCustomerStore()
	store.orders = []database.Order{readyOrder("ORD-1"), readyOrder("ORD-2")}
	router := setupCustomerRouter(store)

	rr := doAuthRequest(t, router, "GET", "/customers/cust-1/orders?limit=5", nil, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.ordersArg.UserID != "cust-1" || store.ordersArg.Limit != 5 {
		t.Errorf("params: got %+v", store.ordersArg)
	}
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("orders: got %d, want 2", len(resp))
	}
}

func TestCustomerForgetDevice(t *testing.T) {
	store := newMockCustomerStore()
	store.customers["cust-1"] = database.Customer{
		UserID:      "cust-1",
		Name:        "Sari",
		DeviceToken: pgtype.Text{String: "device-abc", Valid: true},
	}
	router := setupCustomerRouter(store)

	rr := doAuthRequest(t, router, "DELETE", "/customers/cust-1/device-token", nil, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["has_device_token"] != false {
		t.Errorf("has_device_token: got %v, want false", resp["has_device_token"])
	}
	if store.customers["cust-1"].DeviceToken.Valid {
		t.Error("token still stored")
	}
}

func TestCustomerForgetDevice_NotFound(t *testing.T) {
	router := setupCustomerRouter(newMockCustomerStore())

	rr := doAuthRequest(t, router, "DELETE", "/customers/ghost/device-token", nil, staffClaims())
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
