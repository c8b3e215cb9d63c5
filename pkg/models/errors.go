package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Common error codes for JSON responses
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error taxonomy of the engine
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyAwarded   = errors.New("badge already awarded")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden access")
)

// AppError carries a transport-facing code alongside the underlying cause
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause so errors.Is matches the sentinels above
func (e *AppError) Unwrap() error {
	return e.Err
}

// ToWebSocketError returns WebSocket close code and message
func (e *AppError) ToWebSocketError() (int, string) {
	switch e.Code {
	case ErrCodeUnauthorized:
		return websocket.ClosePolicyViolation, "authentication required"
	case ErrCodeForbidden:
		return websocket.ClosePolicyViolation, "forbidden access"
	case ErrCodeNotFound:
		return websocket.CloseNormalClosure, "resource not found"
	case ErrCodeServiceUnavailable:
		return websocket.CloseTryAgainLater, e.Message
	default:
		return websocket.CloseInternalServerErr, e.Message
	}
}

// NewValidationError reports malformed input
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        ErrInvalidInput,
	}
}

// NewUnauthorizedError reports a missing or rejected credential
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthorized,
	}
}

// NewNotFoundError reports a missing user
func NewNotFoundError(userID string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    "user not found",
		StatusCode: http.StatusNotFound,
		Details:    map[string]interface{}{"user_id": userID},
		Err:        ErrUserNotFound,
	}
}

// NewStoreError wraps any driver failure as ErrStoreUnavailable
func NewStoreError(operation string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeServiceUnavailable,
		Message:    "database error during " + operation,
		StatusCode: http.StatusServiceUnavailable,
		Err:        errors.Join(ErrStoreUnavailable, err),
	}
}

// StatusFor maps an engine error to an HTTP status code
func StatusFor(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyAwarded):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the generic text shown to API callers
func PublicMessage(err error) string {
	switch StatusFor(err) {
	case http.StatusNotFound:
		return "user not found"
	case http.StatusBadRequest:
		var appErr *AppError
		if errors.As(err, &appErr) {
			return appErr.Message
		}
		return "invalid input"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "forbidden access"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}
