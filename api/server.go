/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured slog line per request
  3. Metrics:    Latency histogram by route pattern
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/profiles/*       Profile management
  /api/persons/*        Person management and time entry
  /api/report/*         Computed summaries, payouts and totals
  /api/calculate        Stateless computation
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(instrument(h.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Method("GET", "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Profile routes
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)
			r.Get("/{id}", h.GetProfile)
			r.Put("/{id}", h.UpdateProfile)
			r.Delete("/{id}", h.DeleteProfile)
		})

		// Person routes
		r.Route("/persons", func(r chi.Router) {
			r.Get("/", h.ListPersons)
			r.Post("/", h.AddPerson)
			r.Get("/{id}", h.GetPerson)
			r.Delete("/{id}", h.RemovePerson)
			r.Put("/{id}/time-entry", h.UpdateTimeEntry)
			r.Put("/{id}/client-rate", h.SetClientRate)
			r.Put("/{id}/deductions/{deductionID}", h.SetDeductionActive)
			r.Get("/{id}/summary", h.GetSummary)
		})

		// Report routes
		r.Route("/report", func(r chi.Router) {
			r.Get("/", h.GetReport)
			r.Get("/summaries", h.GetSummaries)
			r.Get("/payouts", h.GetPayouts)
			r.Get("/totals", h.GetTotals)
		})
		r.Post("/calculate", h.Calculate)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetWorkspace)
		})
	})

	return r
}
