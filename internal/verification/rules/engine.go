// Package rules holds the per-document-type field rules: regex extraction
// used when no structured extraction is available, cleaning, validation and
// the bill total-consistency check.
package rules

import (
	"time"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// Engine evaluates field rules. It holds only immutable configuration and is
// safe for concurrent use.
type Engine struct {
	schemas map[domain.DocumentType]*schema
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used for date plausibility checks
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine builds an engine with the built-in schema table
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		schemas: defaultSchemas(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequiredFields returns the fields a document of type t must carry
func (e *Engine) RequiredFields(t domain.DocumentType) []string {
	s, ok := e.schemas[t]
	if !ok {
		return nil
	}
	return append([]string(nil), s.required...)
}

// Supports reports whether the engine has a schema for t
func (e *Engine) Supports(t domain.DocumentType) bool {
	_, ok := e.schemas[t]
	return ok
}
