package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrGatewayBusiness = errors.New("gateway rejected request")
	ErrUpstreamError   = errors.New("upstream error")
	ErrRateLimited     = errors.New("rate limited")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Details    []ErrorDetail `json:"errors,omitempty"`
	StatusCode int           `json:"-"` // HTTP status, not serialized
	Err        error         `json:"-"` // Wrapped error, not serialized
}

// ErrorDetail is one field-level problem. Field is empty when the gateway
// reported the problem without a field path.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		Details:    []ErrorDetail{{Field: field, Message: reason}},
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewFieldValidationError creates a 400 error carrying one message per field.
// Details are ordered as given; the message names the first field.
func NewFieldValidationError(details []ErrorDetail) *APIError {
	msg := "invalid request"
	if len(details) > 0 {
		msg = fmt.Sprintf("invalid %s: %s", details[0].Field, details[0].Message)
	}
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		Details:    details,
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewGatewayBusinessError creates a 422 error from gateway user errors.
// The first user error's message is surfaced verbatim.
func NewGatewayBusinessError(userErrors []UserError) *APIError {
	details := make([]ErrorDetail, 0, len(userErrors))
	for _, ue := range userErrors {
		details = append(details, ErrorDetail{
			Field:   strings.Join(ue.Field, "."),
			Message: ue.Message,
		})
	}
	msg := "request rejected by store"
	if len(userErrors) > 0 && userErrors[0].Message != "" {
		msg = userErrors[0].Message
	}
	return &APIError{
		Code:       "GATEWAY_REJECTED",
		Message:    msg,
		Details:    details,
		StatusCode: 422,
		Err:        ErrGatewayBusiness,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewDecodeError creates a 502 error for gateway payloads that do not match
// the expected shape. It counts as a transport failure.
func NewDecodeError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_DECODE_ERROR",
		Message:    fmt.Sprintf("unexpected %s response", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: decoding: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		Err:        ErrRateLimited,
	}
}

// IsBusiness reports whether the gateway understood and rejected the request.
func IsBusiness(err error) bool { return errors.Is(err, ErrGatewayBusiness) }

// IsTransport reports whether the gateway could not be reached or answered
// with something unusable.
func IsTransport(err error) bool {
	return errors.Is(err, ErrUpstreamError) || errors.Is(err, ErrRateLimited)
}

// IsNotFound reports whether a referenced cart, line or collection is missing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether the request was rejected before any remote call.
func IsValidation(err error) bool { return errors.Is(err, ErrInvalidRequest) }
