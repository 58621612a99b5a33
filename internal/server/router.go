package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synapse-hq/synapse/internal/api"
	"github.com/synapse-hq/synapse/internal/api/handlers"
	"github.com/synapse-hq/synapse/internal/api/middleware"
)

type RouterConfig struct {
	IngestHandler    *handlers.IngestHandler
	SearchHandler    *handlers.SearchHandler
	DocumentHandler  *handlers.DocumentHandler
	GraphHandler     *handlers.GraphHandler
	IntegrityHandler *handlers.IntegrityHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ingest", cfg.IngestHandler.Ingest)
	r.Post("/search", cfg.SearchHandler.Search)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
	})

	r.Route("/graph", func(r chi.Router) {
		r.Get("/stats", cfg.GraphHandler.Stats)
		r.Get("/traverse", cfg.GraphHandler.Traverse)
	})

	r.Route("/integrity", func(r chi.Router) {
		r.Get("/", cfg.IntegrityHandler.Check)
		r.Post("/reconcile", cfg.IntegrityHandler.Reconcile)
	})

	return r
}
