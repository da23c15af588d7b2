package errorx

import (
	"fmt"
	"net/http"
)

// ErrorCategory represents different categories of control API errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryInternal       ErrorCategory = "internal"
)

// APIError is a control API failure with the status it maps to.
// Only Message is written to the response body.
type APIError struct {
	Code       string         `json:"-"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// WithDetail returns a copy of the error carrying an extra logged detail
func (e *APIError) WithDetail(key string, value any) *APIError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

var (
	ErrBadRequest = &APIError{
		Code:       "E1001",
		Message:    "Bad request",
		Category:   CategoryValidation,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrValidation = &APIError{
		Code:       "E1002",
		Message:    "Validation error",
		Category:   CategoryValidation,
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrUnauthorized = &APIError{
		Code:       "E2001",
		Message:    "Unauthorized",
		Category:   CategoryAuthentication,
		HTTPStatus: http.StatusForbidden,
	}

	ErrNonExistingNamespace = &APIError{
		Code:       "E4001",
		Message:    "Non-existing namespace.",
		Category:   CategoryNotFound,
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrNonExistingSocket = &APIError{
		Code:       "E4002",
		Message:    "Non-existing socket id.",
		Category:   CategoryNotFound,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// InternalError builds the generic 500 body for an unhandled failure
func InternalError(method, url string) *APIError {
	return &APIError{
		Code:       "E5001",
		Message:    fmt.Sprintf("API:: Error; url=%s, method=%s", url, method),
		Category:   CategoryInternal,
		HTTPStatus: http.StatusInternalServerError,
	}
}
