package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brewqueue/api/internal/auth"
	"github.com/brewqueue/api/internal/handler"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func setupAdminRouter(store *mockAdminStore) *chi.Mux {
	h := handler.NewAdminHandler(store)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Use(middleware.RequireRole("admin"))
		r.Route("/admins", h.RegisterRoutes)
	})
	return r
}

func adminClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), Email: "owner@brewqueue.id", Role: "admin"}
}

func TestAdminGrant_Success(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t, "barista@brewqueue.id", "staff"))
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "POST", "/admins/grant", map[string]string{"email": " Barista@BrewQueue.id "}, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["message"] != "Successfully set admin role for barista@brewqueue.id" {
		t.Errorf("message: got %v", resp["message"])
	}
	if store.userByEmail["barista@brewqueue.id"].Role != "admin" {
		t.Errorf("role not updated: %q", store.userByEmail["barista@brewqueue.id"].Role)
	}
}

func TestAdminGrant_MissingEmail(t *testing.T) {
	router := setupAdminRouter(newMockStore())

	rr := doAuthRequest(t, router, "POST", "/admins/grant", map[string]string{"email": ""}, adminClaims())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestAdminGrant_UnknownEmail(t *testing.T) {
	router := setupAdminRouter(newMockStore())

	rr := doAuthRequest(t, router, "POST", "/admins/grant", map[string]string{"email": "ghost@brewqueue.id"}, adminClaims())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestAdminGrant_StoreError(t *testing.T) {
	store := newMockStore()
	store.setRoleErr = errors.New("connection reset")
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "POST", "/admins/grant", map[string]string{"email": "a@b.c"}, adminClaims())
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
}

func TestAdminGrant_StaffForbidden(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t, "barista@brewqueue.id", "staff"))
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "POST", "/admins/grant", map[string]string{"email": "barista@brewqueue.id"}, staffClaims())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if store.userByEmail["barista@brewqueue.id"].Role != "staff" {
		t.Error("role changed by a non-admin")
	}
}

func TestAdminGrant_Unauthenticated(t *testing.T) {
	router := setupAdminRouter(newMockStore())

	rr := postJSON(t, router, "/admins/grant", map[string]string{"email": "a@b.c"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestAdminList(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t, "one@brewqueue.id", "admin"))
	store.addUser(makeTestUser(t, "two@brewqueue.id", "staff"))
	router := setupAdminRouter(store)

	token, err := auth.GenerateToken(testSecret, uuid.New(), "owner@brewqueue.id", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest("GET", "/admins", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if body := rr.Body.String(); !containsAll(body, "one@brewqueue.id", "two@brewqueue.id") || containsAll(body, "hashed_password") {
		t.Errorf("body: %s", body)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestAdminCreate_DefaultsToStaff(t *testing.T) {
	store := newMockStore()
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "POST", "/admins", map[string]string{
		"email":     "New@BrewQueue.id",
		"password":  "longenough",
		"full_name": "New Barista",
	}, adminClaims())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	u, ok := store.userByEmail["new@brewqueue.id"]
	if !ok || u.Role != "staff" {
		t.Fatalf("stored user: %+v", u)
	}
	if u.HashedPassword == "longenough" {
		t.Error("password stored in plain text")
	}
}

func TestAdminCreate_Validation(t *testing.T) {
	router := setupAdminRouter(newMockStore())

	cases := []map[string]string{
		{"email": "", "password": "longenough", "full_name": "X"},
		{"email": "no-at-sign", "password": "longenough", "full_name": "X"},
		{"email": "a@b.c", "password": "short", "full_name": "X"},
		{"email": "a@b.c", "password": "longenough", "full_name": "X", "role": "owner"},
	}
	for _, body := range cases {
		rr := doAuthRequest(t, router, "POST", "/admins", body, adminClaims())
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%v: status got %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestAdminCreate_DuplicateEmail(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t, "taken@brewqueue.id", "staff"))
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "POST", "/admins", map[string]string{
		"email": "taken@brewqueue.id", "password": "longenough", "full_name": "Dup",
	}, adminClaims())
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestAdminUpdate_Success(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t, "barista@brewqueue.id", "staff")
	store.addUser(user)
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/admins/"+user.ID.String(), map[string]string{
		"full_name": " Head Barista ",
		"role":      "admin",
	}, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["full_name"] != "Head Barista" || resp["role"] != "admin" || resp["is_active"] != true {
		t.Errorf("response: %v", resp)
	}
	if got := store.userByID[user.ID]; got.Role != "admin" || !got.IsActive {
		t.Errorf("stored user: %+v", got)
	}
}

func TestAdminUpdate_Reactivates(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t, "barista@brewqueue.id", "staff")
	user.IsActive = false
	store.addUser(user)
	router := setupAdminRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/admins/"+user.ID.String(), map[string]interface{}{
		"full_name": "Barista",
		"role":      "staff",
		"is_active": true,
	}, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !store.userByID[user.ID].IsActive {
		t.Error("account still inactive")
	}
}

func TestAdminUpdate_Rejected(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t, "barista@brewqueue.id", "staff")
	store.addUser(user)
	router := setupAdminRouter(store)

	self := adminClaims()
	path := "/admins/" + user.ID.String()
	tests := []struct {
		name   string
		path   string
		body   map[string]interface{}
		claims *auth.Claims
		want   int
	}{
		{"bad id", "/admins/not-a-uuid", map[string]interface{}{"full_name": "X", "role": "staff"}, adminClaims(), http.StatusBadRequest},
		{"missing role", path, map[string]interface{}{"full_name": "X"}, adminClaims(), http.StatusBadRequest},
		{"unknown role", path, map[string]interface{}{"full_name": "X", "role": "owner"}, adminClaims(), http.StatusBadRequest},
		{"unknown account", "/admins/" + uuid.NewString(), map[string]interface{}{"full_name": "X", "role": "staff"}, adminClaims(), http.StatusNotFound},
		{"demote self", "/admins/" + self.UserID.String(), map[string]interface{}{"full_name": "Owner", "role": "staff"}, self, http.StatusBadRequest},
		{"deactivate self", "/admins/" + self.UserID.String(), map[string]interface{}{"full_name": "Owner", "role": "admin", "is_active": false}, self, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, "PUT", tt.path, tt.body, tt.claims)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
	if got := store.userByID[user.ID]; got.FullName != user.FullName || got.Role != "staff" {
		t.Errorf("account changed by rejected updates: %+v", got)
	}
}

func TestAdminDelete_DeactivatesAccount(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t, "barista@brewqueue.id", "staff")
	store.addUser(user)
	refresh, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doAuthRequest(t, setupAdminRouter(store), "DELETE", "/admins/"+user.ID.String(), nil, adminClaims())
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}
	got, ok := store.userByID[user.ID]
	if !ok || got.IsActive {
		t.Fatalf("stored user: %+v (present %t)", got, ok)
	}

	authRouter := newAuthRouter(store)
	if rr := postJSON(t, authRouter, "/auth/refresh", map[string]string{"refresh_token": refresh}); rr.Code != http.StatusUnauthorized {
		t.Errorf("refresh after deactivation: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if rr := postJSON(t, authRouter, "/auth/login", map[string]string{"email": user.Email, "password": "correct-password"}); rr.Code != http.StatusUnauthorized {
		t.Errorf("login after deactivation: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAdminDelete_Rejected(t *testing.T) {
	store := newMockStore()
	inactive := makeTestUser(t, "gone@brewqueue.id", "staff")
	inactive.IsActive = false
	store.addUser(inactive)
	router := setupAdminRouter(store)
	self := adminClaims()

	tests := []struct {
		name   string
		path   string
		claims *auth.Claims
		want   int
	}{
		{"bad id", "/admins/not-a-uuid", adminClaims(), http.StatusBadRequest},
		{"unknown account", "/admins/" + uuid.NewString(), adminClaims(), http.StatusNotFound},
		{"already inactive", "/admins/" + inactive.ID.String(), adminClaims(), http.StatusNotFound},
		{"self", "/admins/" + self.UserID.String(), self, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, "DELETE", tt.path, nil, tt.claims)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}
