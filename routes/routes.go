package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flakeguard/flakeguard/handlers"
	"github.com/flakeguard/flakeguard/middleware"
)

// Handlers groups the HTTP handlers and middleware the router wires up
type Handlers struct {
	Health    *handlers.HealthHandler
	Analyze   *handlers.AnalyzeHandler
	Usage     *handlers.UsageHandler // nil when no database is configured
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", h.Health.HandleHealth)
	r.Get("/readyz", h.Health.HandleReadiness)

	// API v1 routes: authenticate first so the rate limit key is the API
	// key hash rather than the caller's IP
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Auth.RequireAPIKey)
		r.Use(h.RateLimit.Limit)

		r.Post("/analyze", h.Analyze.HandleAnalyze)

		if h.Usage != nil {
			r.Get("/usage/summary", h.Usage.HandleSummary)
		}
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
