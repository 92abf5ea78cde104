// Package errors defines the sentinel errors and the AppError type that
// repositories and services return and the HTTP layer translates.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is checks across layers.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrServiceUnavail   = errors.New("service unavailable")
	ErrStockUnavailable = errors.New("stock unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrSignatureInvalid = errors.New("signature invalid")
)

// AppError pairs a client-facing code and message with an HTTP status.
// The wrapped Err stays server-side for errors.Is checks and logs.
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

// NotFound creates a 404 for a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400. The message is user-facing.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Forbidden creates a 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// StockUnavailable creates a 409 for a failed inventory reservation.
// The message is intentionally generic so callers learn nothing about other
// shoppers' reservations.
func StockUnavailable() *AppError {
	return &AppError{
		Code:    "STOCK_UNAVAILABLE",
		Message: "one or more items in your cart are no longer available",
		Status:  http.StatusConflict,
		Err:     ErrStockUnavailable,
	}
}

// RateLimited creates a 429 with a count-based explanation.
func RateLimited(message string) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// GatewayUnavailable creates a 503 for a failed payment-gateway call.
// The caller sees a generic "try again" message; the wrapped error keeps the
// gateway detail for server-side logs.
func GatewayUnavailable(err error) *AppError {
	return &AppError{
		Code:    "GATEWAY_UNAVAILABLE",
		Message: "payment service is temporarily unavailable, please try again",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrServiceUnavail, err),
	}
}

// SignatureInvalid creates a 401 for a webhook whose signature could not
// be verified.
func SignatureInvalid() *AppError {
	return &AppError{
		Code:    "SIGNATURE_INVALID",
		Message: "webhook signature verification failed",
		Status:  http.StatusUnauthorized,
		Err:     ErrSignatureInvalid,
	}
}

// HTTPStatus maps err to a status code, preferring an AppError's own
// status over sentinel mapping. Unknown errors are a 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict), errors.Is(err, ErrStockUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
