package server

import (
	"net/http"

	"github.com/cloo-solutions/reelrag/internal/api"
	"github.com/cloo-solutions/reelrag/internal/api/handlers"
	"github.com/cloo-solutions/reelrag/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	RetrievalHandler *handlers.RetrievalHandler
	PipelineHandler  *handlers.PipelineHandler
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

	r.Route("/rag", func(r chi.Router) {
		r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)
		r.Get("/stats", cfg.RetrievalHandler.Stats)
	})

	// The pipeline routes are absent when the server runs without a pipeline.
	if cfg.PipelineHandler != nil {
		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/run", cfg.PipelineHandler.Run)
			r.Get("/last", cfg.PipelineHandler.Last)
		})
	}

	return r
}
