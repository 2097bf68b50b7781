package pipeline

import (
	"errors"
	"fmt"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/logger"
)

// Severity decides whether a stage failure lands in errors or warnings
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// StageError is a recorded stage failure
type StageError struct {
	Stage    string
	Severity Severity
	Message  string
	Cause    error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Message
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// StageResult is the outcome of one isolated stage. Warnings are findings
// recorded even when the stage succeeded.
type StageResult[T any] struct {
	Value    T
	Warnings []string
	Err      *StageError
}

// Failed reports whether the stage recorded a failure
func (r StageResult[T]) Failed() bool {
	return r.Err != nil
}

func (r StageResult[T]) record(res *domain.ProcessingResult) {
	for _, w := range r.Warnings {
		res.AddWarning(w)
	}
	if r.Err == nil {
		return
	}
	if r.Err.Severity == SeverityError {
		res.AddError(r.Err.Message)
	} else {
		res.AddWarning(r.Err.Message)
	}
}

// stage describes one pipeline step and how its panics are reported
type stage struct {
	name     string
	severity Severity
	onPanic  func(v any) string
}

var (
	authenticityStage = stage{
		name:     "authenticity",
		severity: SeverityWarning,
		onPanic:  func(any) string { return msgAuthenticityUnavailable },
	}
	extractionStage = stage{
		name:     "extraction",
		severity: SeverityError,
		onPanic:  func(v any) string { return fmt.Sprintf("Extraction failed: %v", v) },
	}
	validationStage = stage{
		name:     "validation",
		severity: SeverityError,
		onPanic:  func(v any) string { return fmt.Sprintf("Validation failed: %v", v) },
	}
	faceStage = stage{
		name:     "face",
		severity: SeverityWarning,
		onPanic:  func(v any) string { return fmt.Sprintf("Face detection failed: %v", v) },
	}
)

func (s stage) fail(message string, cause error) *StageError {
	return &StageError{Stage: s.name, Severity: s.severity, Message: message, Cause: cause}
}

// runStage calls fn and converts a panic into a StageError of the stage's
// severity. The zero value is returned with a panic.
func runStage[T any](log *logger.Logger, s stage, fn func() StageResult[T]) (out StageResult[T]) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		log.WithStage(s.name).Error().
			Interface("panic", v).
			Msg("pipeline stage panicked")

		var zero T
		out.Value = zero
		out.Err = s.fail(s.onPanic(v), errors.New(fmt.Sprint(v)))
	}()
	return fn()
}
