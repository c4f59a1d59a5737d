package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies an AppError for transport mapping.
type ErrorKind string

// Error kinds
const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindPermission ErrorKind = "permission"
	KindNotFound   ErrorKind = "not_found"
	KindInternal   ErrorKind = "internal"
)

// Error codes
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeAuthNotFound       = "AUTH_NOT_FOUND"
	CodeAuthBadPassword    = "AUTH_BAD_PASSWORD"
	CodeAuthBanned         = "AUTH_BANNED"
	CodeAuthDuplicate      = "AUTH_DUPLICATE"
	CodePermissionMuted    = "PERMISSION_MUTED"
	CodePermissionBanned   = "PERMISSION_BANNED"
	CodePermissionNoAccess = "PERMISSION_NO_ACCESS"
	CodeNotAdmin           = "PERMISSION_NOT_ADMIN"
	CodeNotAuthor          = "PERMISSION_NOT_AUTHOR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: message,
	}
}

// NewAuthError builds a login/registration failure with one of the AUTH_* codes.
func NewAuthError(code, message string) *AppError {
	return &AppError{
		Kind:    KindAuth,
		Code:    code,
		Message: message,
	}
}

// NewPermissionError builds a refusal with one of the PERMISSION_* codes.
func NewPermissionError(code, message string) *AppError {
	return &AppError{
		Kind:    KindPermission,
		Code:    code,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Kind:    KindAuth,
		Code:    CodeUnauthenticated,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// AsAppError extracts an AppError from err, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response. A zero status is
// derived from the error kind.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	appErr := AsAppError(err)
	if status == 0 {
		status = HTTPStatus(appErr.Kind)
	}

	response := ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	}
	// Internal causes stay in the logs.
	if appErr.Err != nil && appErr.Kind != KindInternal {
		response.Details = appErr.Err.Error()
	}

	return c.Status(status).JSON(response)
}
