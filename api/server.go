/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router and middleware stack for the inspection API.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for internal dashboards

SECURITY NOTE:
  The API is read-only (plus dry-run computation); it cannot mutate the
  store. Still no authentication - deploy behind the internal proxy only.

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

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Get("/accounts", h.ListAccounts)
			r.Get("/snapshots/{year}", h.GetSnapshot)
			r.Get("/credit-ledgers/{unitID}", h.GetCreditLedger)
			r.Post("/rebuild/{year}", h.RebuildDryRun)
		})
	})

	return r
}
