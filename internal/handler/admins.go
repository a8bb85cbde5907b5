package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/enum"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

// AdminStore defines the database methods needed by admin account handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AdminStore interface {
	CreateAdminUser(ctx context.Context, arg database.CreateAdminUserParams) (database.AdminUser, error)
	ListAdminUsers(ctx context.Context) ([]database.AdminUser, error)
	SetAdminUserRole(ctx context.Context, arg database.SetAdminUserRoleParams) (database.AdminUser, error)
	UpdateAdminUser(ctx context.Context, arg database.UpdateAdminUserParams) (database.AdminUser, error)
	DeactivateAdminUser(ctx context.Context, id uuid.UUID) (database.AdminUser, error)
}

// AdminHandler manages admin accounts.
type AdminHandler struct {
	store AdminStore
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store AdminStore) *AdminHandler {
	return &AdminHandler{store: store}
}

// RegisterRoutes registers admin account endpoints.
// Expected to be mounted at /admins behind RequireRole("admin").
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/grant", h.Grant)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type grantRequest struct {
	Email string `json:"email"`
}

type updateAdminRequest struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

var errSelfLockout = errors.New("cannot demote or deactivate your own account")

// List handles GET /admins.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListAdminUsers(r.Context())
	if err != nil {
		log.Printf("ERROR: list admin users: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /admins. Role defaults to staff.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password, and full_name are required"})
		return
	}

	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email format"})
		return
	}

	if req.Role == "" {
		req.Role = enum.RoleStaff
	}
	if !isValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: create admin user: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.CreateAdminUser(r.Context(), database.CreateAdminUserParams{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
			return
		}
		log.Printf("ERROR: create admin user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("%s account %s created by %s", user.Role, user.Email, middleware.Actor(r.Context()))
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Grant handles POST /admins/grant. It promotes an existing account to the
// admin role.
func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	user, err := h.store.SetAdminUserRole(r.Context(), database.SetAdminUserRoleParams{
		Email: email,
		Role:  enum.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: grant admin role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("admin role granted to %s by %s", user.Email, middleware.Actor(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Successfully set admin role for %s", user.Email),
	})
}

// Update handles PUT /admins/{id}. is_active is optional; leaving it out
// keeps the current value, true reactivates the account.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	var req updateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "full_name and role are required"})
		return
	}
	if !isValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}
	if isSelf(r, userID) && (req.Role != enum.RoleAdmin || (req.IsActive != nil && !*req.IsActive)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errSelfLockout.Error()})
		return
	}

	active := pgtype.Bool{}
	if req.IsActive != nil {
		active = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}

	user, err := h.store.UpdateAdminUser(r.Context(), database.UpdateAdminUserParams{
		ID:       userID,
		FullName: req.FullName,
		Role:     req.Role,
		IsActive: active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: update admin user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("account %s updated by %s (role %s, active %t)", user.Email, middleware.Actor(r.Context()), user.Role, user.IsActive)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Delete handles DELETE /admins/{id}. The account is deactivated, not
// removed; its tokens stop refreshing and it can no longer log in.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}
	if isSelf(r, userID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errSelfLockout.Error()})
		return
	}

	user, err := h.store.DeactivateAdminUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: deactivate admin user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("account %s deactivated by %s", user.Email, middleware.Actor(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func isSelf(r *http.Request, userID uuid.UUID) bool {
	claims := middleware.ClaimsFromContext(r.Context())
	return claims != nil && claims.UserID == userID
}

func isValidRole(role string) bool {
	switch role {
	case enum.RoleAdmin, enum.RoleStaff:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
