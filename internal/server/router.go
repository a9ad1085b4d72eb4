package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docsage/docsage/internal/api"
	"github.com/docsage/docsage/internal/api/handlers"
	"github.com/docsage/docsage/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	QueryHandler    *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Upload)
		r.Post("/process", cfg.DocumentHandler.Process)
		r.Get("/", cfg.DocumentHandler.List)
		r.Delete("/{name}", cfg.DocumentHandler.Delete)
	})

	r.Post("/query", cfg.QueryHandler.Query)
	r.Post("/search", cfg.QueryHandler.Search)
	r.Get("/stats", cfg.DocumentHandler.Stats)

	return r
}
