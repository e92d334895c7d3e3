// Package errors defines structured error types for the API.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required field is missing
	ErrMissingField ErrorCode = "MISSING_FIELD"

	// ErrNotFound is returned when a resource is not found
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrDuplicateEmail is returned when registering an email already in use
	ErrDuplicateEmail ErrorCode = "DUPLICATE_EMAIL"
	// ErrInvalidCredentials is returned when login fails
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	// ErrStorageUnavailable is returned when the data files cannot be used
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	// ErrPayloadTooLarge is returned when a request body exceeds its quota
	ErrPayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrRateLimitExceeded is returned when a client sends too many requests
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrRequestCanceled is returned when the client went away mid-request
	ErrRequestCanceled ErrorCode = "REQUEST_CANCELED"

	// ErrInternal is returned when an unexpected server error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	// ErrUnauthorized is returned when authentication is missing or invalid
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrForbidden is returned when a user has insufficient permissions
	ErrForbidden ErrorCode = "FORBIDDEN"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorDetails carries the code and human readable message.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
//
// The wrapped error is not included; it may carry file paths that must not
// leak to clients. Use Unwrap to log it.
func (e *APIError) Error() string {
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Predefined error constructors for common cases

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, fmt.Sprintf("Missing required field: %s", fieldName)).WithDetail("field", fieldName)
}

// DuplicateEmail creates a 409 Conflict error.
func DuplicateEmail() *APIError {
	return NewAPIError(http.StatusConflict, ErrDuplicateEmail, "Email already registered")
}

// InvalidCredentials creates a 401 error for a failed login.
func InvalidCredentials() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrInvalidCredentials, "Invalid credentials")
}

// Forbidden returns a 403 Forbidden error.
func Forbidden(message string) *APIError {
	return NewAPIError(http.StatusForbidden, ErrForbidden, message)
}

// Unauthorized returns a 401 Unauthorized error.
func Unauthorized() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrUnauthorized, "Unauthorized")
}

// StorageUnavailable returns a 503 error for unreadable or unwritable data files.
func StorageUnavailable() *APIError {
	return NewAPIError(http.StatusServiceUnavailable, ErrStorageUnavailable, "Storage unavailable")
}

// PayloadTooLarge returns a 413 error.
func PayloadTooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrPayloadTooLarge, fmt.Sprintf("Request body exceeds %d bytes", limit)).WithDetail("limit", limit)
}

// RateLimitExceeded returns a 429 error.
func RateLimitExceeded(retryAfterSeconds int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimitExceeded, "Too many requests").WithDetail("retry_after", retryAfterSeconds)
}

// StatusClientClosedRequest is the non-standard status used when the client
// canceled the request before it completed.
const StatusClientClosedRequest = 499

// RequestCanceled returns a 499 error. The client rarely sees it.
func RequestCanceled() *APIError {
	return NewAPIError(StatusClientClosedRequest, ErrRequestCanceled, "Request canceled")
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
