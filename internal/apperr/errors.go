// Package apperr defines the error taxonomy shared across the ingestion
// pipeline and the request handlers. Pipeline errors are terminal for a run
// and turn into a failed ingestion event; store errors are transient and the
// caller logs and moves on.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Pipeline stage errors. Each one short-circuits an ingestion run.
	ErrFetch      = errors.New("fetch failed")
	ErrValidation = errors.New("content validation failed")
	ErrParse      = errors.New("parse failed")
	ErrChunk      = errors.New("chunking produced no segments")
	ErrIndexWrite = errors.New("index write failed")

	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
)

// Newf wraps a sentinel with formatted detail, keeping errors.Is matching.
func Newf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// IsPipeline reports whether err belongs to the terminal pipeline taxonomy.
func IsPipeline(err error) bool {
	return errors.Is(err, ErrFetch) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrChunk) ||
		errors.Is(err, ErrIndexWrite)
}

// HTTPStatusCode maps an error to the status code handlers should return.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
