// Package errors defines the categorized error taxonomy shared by services and the API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/qr-hub/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents user-correctable input errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents missing or invalid credentials
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents unknown or foreign records
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryLimit represents plan quota rejections
	CategoryLimit ErrorCategory = "limit"
	// CategoryRateLimit represents request throttling
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryUpstream represents collaborating services that are missing or failing
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryDatabase represents storage failures
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents other internal failures
	CategorySystem ErrorCategory = "system"
)

// Error codes
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	CodeSlugExhausted       = "SLUG_EXHAUSTED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeDatabase            = "DATABASE_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// IsClientSafe reports whether Message may be shown to the caller verbatim
func (e *CategorizedError) IsClientSafe() bool {
	return e.StatusCode < http.StatusInternalServerError || e.Category == CategoryUpstream
}

// NewValidationError creates a 400 error whose message is the reason shown to the caller
func NewValidationError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    reason,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       CodeUnauthorized,
		Message:    message,
	}
}

// NewNotFoundError creates a not found error. The message never reveals whether
// the resource exists under another owner.
func NewNotFoundError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    message,
	}
}

// NewLimitExceededError creates a plan quota error carrying upgrade guidance
func NewLimitExceededError(action types.LimitAction, plan types.Plan, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLimit,
		StatusCode: http.StatusForbidden,
		Code:       CodeLimitExceeded,
		Message:    reason,
		Details: map[string]interface{}{
			"action": action,
			"plan":   plan,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimit,
		Message:    "Rate limit exceeded. Please try again later.",
	}
}

// NewSlugExhaustedError is returned when every generated slug collided
func NewSlugExhaustedError(attempts int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeSlugExhausted,
		Message:    "Could not allocate a unique slug",
		Cause:      cause,
		Details: map[string]interface{}{
			"attempts": attempts,
		},
	}
}

// NewUpstreamUnavailableError reports a collaborating service that is not configured or failing
func NewUpstreamUnavailableError(service string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("%s is unavailable", service),
		Cause:      cause,
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// As extracts a CategorizedError from err's chain
func As(err error) (*CategorizedError, bool) {
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category ErrorCategory) bool {
	catErr, ok := As(err)
	return ok && catErr.Category == category
}

// GetHTTPStatusCode returns the HTTP status for err, 500 for uncategorized errors
func GetHTTPStatusCode(err error) int {
	if catErr, ok := As(err); ok {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
