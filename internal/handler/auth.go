package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/brewqueue/api/internal/auth"
	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
// Both lookups only return active accounts.
type AuthStore interface {
	GetAdminUserByEmail(ctx context.Context, email string) (database.AdminUser, error)
	GetAdminUserByID(ctx context.Context, id uuid.UUID) (database.AdminUser, error)
	SetAdminUserPassword(ctx context.Context, arg database.SetAdminUserPasswordParams) (database.AdminUser, error)
}

// AuthHandler signs staff and admins into the queue console.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterRoutes mounts /auth/login and /auth/refresh. Both are public.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

// RegisterAccountRoutes mounts the signed-in user's own account endpoints.
// Must sit behind Authenticate.
func (h *AuthHandler) RegisterAccountRoutes(r chi.Router) {
	r.Put("/auth/password", h.ChangePassword)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
}

func toUserResponse(u database.AdminUser) userResponse {
	return userResponse{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

// Login checks email and password. Unknown emails and wrong passwords get
// the same 401 so a caller cannot tell which accounts exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, ok := h.lookup(r.Context(), w, "invalid credentials", func(ctx context.Context) (database.AdminUser, error) {
		return h.store.GetAdminUserByEmail(ctx, req.Email)
	})
	if !ok {
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	log.Printf("console login: %s (%s)", user.Email, user.Role)
	h.issue(w, user)
}

// Refresh trades a refresh token for a new pair. The account is re-read so a
// role grant or deactivation takes effect on the next refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	user, ok := h.lookup(r.Context(), w, "user not found", func(ctx context.Context) (database.AdminUser, error) {
		return h.store.GetAdminUserByID(ctx, userID)
	})
	if !ok {
		return
	}
	h.issue(w, user)
}

// ChangePassword handles PUT /auth/password. The caller re-proves the
// current password before the new one is stored.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_password and new_password are required"})
		return
	}
	if len(req.NewPassword) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	if req.NewPassword == req.CurrentPassword {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "new password must differ from the current one"})
		return
	}

	user, ok := h.lookup(r.Context(), w, "user not found", func(ctx context.Context) (database.AdminUser, error) {
		return h.store.GetAdminUserByID(ctx, claims.UserID)
	})
	if !ok {
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.CurrentPassword)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current password is incorrect"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: change password: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if _, err := h.store.SetAdminUserPassword(r.Context(), database.SetAdminUserPasswordParams{
		ID:             user.ID,
		HashedPassword: string(hashed),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: change password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("password changed for %s", user.Email)
	w.WriteHeader(http.StatusNoContent)
}

// lookup runs find and answers 401 with notFoundMsg when no active account
// matches, or 500 on a store failure.
func (h *AuthHandler) lookup(ctx context.Context, w http.ResponseWriter, notFoundMsg string, find func(context.Context) (database.AdminUser, error)) (database.AdminUser, bool) {
	user, err := find(ctx)
	if err == nil {
		return user, true
	}
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": notFoundMsg})
		return database.AdminUser{}, false
	}
	log.Printf("ERROR: load admin user: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	return database.AdminUser{}, false
}

func (h *AuthHandler) issue(w http.ResponseWriter, user database.AdminUser) {
	pair, err := auth.IssuePair(h.jwtSecret, user.ID, user.Email, user.Role)
	if err != nil {
		log.Printf("ERROR: issue tokens for %s: %v", user.Email, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		ExpiresAt:    pair.ExpiresAt,
		User:         toUserResponse(user),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}
