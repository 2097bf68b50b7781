// Package processor holds the collaborator clients the pipeline delegates to:
// a Gemini REST client for structured extraction, document review and remote
// authenticity, and an HTTP client for the face analysis sidecar.
package processor

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Extractor turns a document image into fields.
// Implementations can be swapped in without changing the pipeline.
type Extractor interface {
	// CanProcess returns true if this extractor handles the given document type
	CanProcess(docType domain.DocumentType) bool

	// ExtractFields extracts structured data from the image.
	// The image data should NOT be retained after processing.
	ExtractFields(ctx context.Context, img domain.Image, docType domain.DocumentType) (*domain.Extraction, error)

	// Name returns the extractor name for logging
	Name() string
}

// Registry holds registered extractors and dispatches to the right one
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a new extractor registry
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

func (r *Registry) Name() string { return "registry" }

// Len returns the number of registered extractors
func (r *Registry) Len() int { return len(r.extractors) }

// FindExtractors returns all extractors that can handle the given document
// type, in registration order
func (r *Registry) FindExtractors(docType domain.DocumentType) []Extractor {
	var result []Extractor
	for _, e := range r.extractors {
		if e.CanProcess(docType) {
			result = append(result, e)
		}
	}
	return result
}

// ExtractFields tries each matching extractor in order and returns the first
// success. If all fail, the returned error joins every failure.
func (r *Registry) ExtractFields(ctx context.Context, img domain.Image, docType domain.DocumentType) (*domain.Extraction, error) {
	candidates := r.FindExtractors(docType)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no extractor registered for %s", docType)
	}

	var errs []error
	for _, e := range candidates {
		res, err := e.ExtractFields(ctx, img, docType)
		if err == nil && res == nil {
			err = fmt.Errorf("%s returned no result", e.Name())
		}
		if err == nil {
			if res.Method == "" {
				res.Method = e.Name()
			}
			return res, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, stderrors.Join(errs...)
}
