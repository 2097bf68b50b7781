// Package handler exposes the verification service over HTTP.
package handler

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers every verification route under r
func Mount(r chi.Router, docs *DocumentHandler, health *HealthHandler) {
	r.Get("/health", health.Health)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/upload", docs.Upload)
		r.Post("/process", docs.Process)
		r.Post("/batch", docs.Batch)
		r.Post("/validate", docs.Validate)
		r.Get("/types", docs.Types)
		r.Get("/status/{job_id}", docs.Status)
		r.Get("/results/{document_id}", docs.Result)
		r.Get("/report/{document_id}", docs.Report)
		r.Delete("/{document_id}", docs.Delete)
	})

	r.Post("/face/verify", docs.VerifyFaces)
}
