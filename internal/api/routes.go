package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured. An empty API
// key leaves the collection routes open, for local development only.
func NewRouter(h *Handler, writes *WriteLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Public (devices check reachability without credentials)
	r.Get("/health", h.Health)

	r.Route("/rest/v1/{collection}", func(r chi.Router) {
		if h.apiKey != "" {
			r.Use(AuthMiddleware(h.apiKey))
		}
		r.Use(CollectionCtx)
		r.Get("/", h.Select)
		if writes != nil {
			r.With(writes.Middleware).Post("/", h.Write)
		} else {
			r.Post("/", h.Write)
		}
	})

	return r
}
