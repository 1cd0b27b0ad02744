package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers use these instead of hardcoded strings so
// the invocation surface can map them to status codes uniformly.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidURL   ErrorCode = "validation_invalid_url"
	ErrCodeValidationThreshold    ErrorCode = "validation_threshold_out_of_range"
	ErrCodeValidationInterval     ErrorCode = "validation_interval_out_of_range"
	ErrCodeValidationBadPayload   ErrorCode = "validation_malformed_payload"

	// Not Found (404)
	ErrCodeNotFoundJob   ErrorCode = "not_found_job"
	ErrCodeNotFoundQueue ErrorCode = "not_found_queue"

	// Conflict (409)
	ErrCodeConflictQueueVersion ErrorCode = "conflict_queue_version"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalBlobStore   ErrorCode = "internal_blob_store_error"
	ErrCodeInternalResultStore ErrorCode = "internal_result_store_error"
	ErrCodeInternalDispatch    ErrorCode = "internal_dispatch_error"
	ErrCodeInternalClock       ErrorCode = "internal_clock_error"
	ErrCodeInternalCodec       ErrorCode = "internal_codec_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamShortener   ErrorCode = "upstream_shortener_unavailable"
	ErrCodeUpstreamSource      ErrorCode = "upstream_source_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent formatting, status
// mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
