// Package errors defines the application error type the HTTP layer renders.
// Each constructor pairs a sentinel, a stable machine code and a status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched with Is
var (
	ErrNotFound             = errors.New("resource not found")
	ErrBadRequest           = errors.New("bad request")
	ErrConflict             = errors.New("resource conflict")
	ErrInternal             = errors.New("internal server error")
	ErrValidation           = errors.New("validation error")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrStillProcessing      = errors.New("still processing")
	ErrUnavailable          = errors.New("service unavailable")
)

type kind struct {
	sentinel error
	code     string
	status   int
}

var (
	kindNotFound        = kind{ErrNotFound, "NOT_FOUND", http.StatusNotFound}
	kindBadRequest      = kind{ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest}
	kindConflict        = kind{ErrConflict, "CONFLICT", http.StatusConflict}
	kindInternal        = kind{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError}
	kindValidation      = kind{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest}
	kindTooLarge        = kind{ErrPayloadTooLarge, "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge}
	kindUnsupported     = kind{ErrUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", http.StatusBadRequest}
	kindStillProcessing = kind{ErrStillProcessing, "STILL_PROCESSING", http.StatusAccepted}
	kindUnavailable     = kind{ErrUnavailable, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable}
)

func (k kind) new(message string) *AppError {
	return &AppError{Err: k.sentinel, Code: k.code, Message: message, StatusCode: k.status}
}

// AppError is an error with a client-facing message and HTTP status
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap attaches a code, message and status to err
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{Err: err, Code: code, Message: message, StatusCode: statusCode}
}

// WithDetails sets per-field details
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// NotFound reports a missing resource as "<resource> not found"
func NotFound(resource string) *AppError {
	return kindNotFound.new(resource + " not found")
}

func BadRequest(message string) *AppError { return kindBadRequest.new(message) }

func Conflict(message string) *AppError { return kindConflict.new(message) }

func Internal(message string) *AppError { return kindInternal.new(message) }

func PayloadTooLarge(message string) *AppError { return kindTooLarge.new(message) }

// UnsupportedMediaType rejects an upload by type. It is a 400; clients only
// distinguish it by code.
func UnsupportedMediaType(message string) *AppError { return kindUnsupported.new(message) }

func Unavailable(message string) *AppError { return kindUnavailable.new(message) }

// Validation reports field level failures keyed by JSON field name
func Validation(details map[string]string) *AppError {
	return kindValidation.new("validation failed").WithDetails(details)
}

// StillProcessing is returned when a result is requested before its job reached a terminal state
func StillProcessing(jobStatus string) *AppError {
	return kindStillProcessing.new("document is still being processed").
		WithDetails(map[string]string{"status": jobStatus})
}

// From returns err as an *AppError. Anything else becomes an internal error
// that keeps err as its cause but hides its text from clients.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	internal := kindInternal.new("an unexpected error occurred")
	internal.Err = err
	return internal
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
