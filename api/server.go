/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/rules/*        Rule authoring (total + distribution)
  /api/commissions/*  Compute and preview
  /api/allocations    Persisted allocation reporting
  /api/scenarios/*    Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Rule authoring routes
		r.Route("/rules", func(r chi.Router) {
			r.Route("/total", func(r chi.Router) {
				r.Get("/", h.ListTotalRules)
				r.Post("/", h.CreateTotalRule)
				r.Get("/{id}", h.GetTotalRule)
				r.Put("/{id}", h.UpdateTotalRule)
			})
			r.Route("/distribution", func(r chi.Router) {
				r.Get("/", h.ListDistributionRules)
				r.Post("/", h.CreateDistributionRule)
				r.Get("/{id}", h.GetDistributionRule)
				r.Put("/{id}", h.UpdateDistributionRule)
			})
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Post("/compute", h.ComputeCommission)
			r.Post("/preview", h.PreviewCommission)
		})

		// Reporting routes
		r.Get("/allocations", h.ListAllocations)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
