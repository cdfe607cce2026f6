package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidPath     = errors.New("invalid path")
	ErrConflict        = errors.New("resource conflict") // e.g., email already registered, folder exists
	ErrNotFound        = errors.New("requested resource not found")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden access")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternalServer  = errors.New("internal server error")

	// Token failures. All of them satisfy errors.Is(err, ErrUnauthorized).
	ErrTokenMissing = fmt.Errorf("authorization token required: %w", ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("token has expired: %w", ErrUnauthorized)
	ErrTokenInvalid = fmt.Errorf("invalid token: %w", ErrUnauthorized)
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	// Checked before ErrUnauthorized: a structurally broken token is 422,
	// a missing or expired one is 401.
	if errors.Is(err, ErrTokenInvalid) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidPath) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrTooManyRequests) {
		return http.StatusTooManyRequests
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// StatusWithConflict is HTTPStatusFromError for routes whose public contract
// reports a conflict with a status other than 409.
func StatusWithConflict(err error, conflictStatus int) int {
	if errors.Is(err, ErrConflict) {
		return conflictStatus
	}
	return HTTPStatusFromError(err)
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
