package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public: probes and scraping.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metricsHandler())

	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.audit))
		}
		r.Use(rateLimitMiddleware(g.limiter, g.audit))

		r.Get("/ws", g.handleWebSocket())
		r.Route("/v1", func(r chi.Router) {
			r.Get("/stats", g.handleStats())
			r.Post("/sessions", g.handleCreateSession())
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", g.handleGetSession())
				r.Delete("/", g.handleDeleteSession())
				r.Post("/messages", g.handleMessage())
			})
		})
	})

	return r
}
