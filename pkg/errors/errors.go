// Package errors defines the sentinel errors shared by the search and
// ingestion services and maps them onto HTTP status codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidQuerySyntax = errors.New("invalid query syntax")
	ErrRateLimited        = errors.New("rate limit exceeded")
	// ErrUnavailable marks a failure of postgres, kafka or redis rather
	// than of the request.
	ErrUnavailable = errors.New("dependency unavailable")
	ErrInternal    = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode prefers an AppError's own status, then the sentinel
// mapping. Cancelled and expired contexts count as unavailable.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidQuerySyntax):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns err's text when it describes a client mistake and
// fallback otherwise, so server-side detail never reaches the response.
func ClientMessage(err error, fallback string) string {
	if status := HTTPStatusCode(err); status >= 400 && status < 500 {
		return err.Error()
	}
	return fallback
}
