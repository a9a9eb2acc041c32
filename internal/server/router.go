package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akaclinicalco/jtskb/internal/api"
	"github.com/akaclinicalco/jtskb/internal/api/handlers"
	"github.com/akaclinicalco/jtskb/internal/api/middleware"
)

type RouterConfig struct {
	QueryHandler *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/query", cfg.QueryHandler.Query)
	r.Post("/search", cfg.QueryHandler.Search)
	r.Post("/build", cfg.QueryHandler.Build)
	r.Get("/status", cfg.QueryHandler.Status)

	return r
}
