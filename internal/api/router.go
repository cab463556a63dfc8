package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"docraster"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Post("/pdf/process", h.Process)
		r.Get("/pdf/progress/{id}", h.ProgressStream)
		r.Get("/pdf/progress/{id}/checkpoint", h.ProgressCheckpoint)

		r.Get("/documents", h.ListDocuments)
		r.Get("/documents/{id}/images", h.DocumentImages)
		r.Delete("/documents/{id}", h.DeleteDocument)
	})

	return r
}
