package router

import (
	"log"
	"net/http"

	"github.com/brewqueue/api/internal/config"
	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/handler"
	mw "github.com/brewqueue/api/internal/middleware"
	"github.com/brewqueue/api/internal/service"
	"github.com/brewqueue/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, queueSvc *service.QueueService, sweeper *service.Sweeper, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	queueHandler := handler.NewQueueHandler(queries, sweeper)

	// WebSocket routes authenticate the token query parameter themselves
	r.Method(http.MethodGet, "/ws/queue", ws.NewHandler(hub, cfg.JWTSecret, ws.RoomStaff, cfg.CORSOrigins))
	r.Method(http.MethodGet, "/ws/board", ws.NewHandler(hub, cfg.JWTSecret, ws.RoomBoard, cfg.CORSOrigins).
		WithSnapshot(queueHandler.Snapshot))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireStaff())

		authHandler.RegisterAccountRoutes(r)

		orderHandler := handler.NewOrderHandler(queueSvc, queries, handler.Cafe{Lat: cfg.CafeLat, Lng: cfg.CafeLng}, cfg.Location)
		r.Route("/orders", orderHandler.RegisterRoutes)

		r.Route("/queue", func(r chi.Router) {
			queueHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin())
				queueHandler.RegisterAdminRoutes(r)
			})
		})

		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		reportsHandler := handler.NewReportsHandler(queries, cfg.Location)
		r.Route("/reports", reportsHandler.RegisterRoutes)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAdmin())
			adminHandler := handler.NewAdminHandler(queries)
			r.Route("/admins", adminHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
