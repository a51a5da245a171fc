package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnprocessable  = errors.New("unprocessable request")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrBadGateway     = errors.New("bad gateway")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with an explicit code and status. Domain packages use
// it to define their own machine-readable error kinds on top of a sentinel.
func New(code string, status int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return New("NOT_FOUND", http.StatusNotFound, fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return New("INVALID_INPUT", http.StatusBadRequest, message, ErrInvalidInput)
}

// Unprocessable creates a 422 error.
func Unprocessable(message string) *AppError {
	return New("UNPROCESSABLE", http.StatusUnprocessableEntity, message, ErrUnprocessable)
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return New("CONFLICT", http.StatusConflict, message, ErrConflict)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, message, ErrServiceUnavail)
}

// BadGateway creates a 502 error for a failed upstream call.
func BadGateway(message string) *AppError {
	return New("BAD_GATEWAY", http.StatusBadGateway, message, ErrBadGateway)
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return New("INTERNAL_ERROR", http.StatusInternalServerError, "an internal error occurred", err)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
