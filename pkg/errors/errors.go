package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned sentinels still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrRateLimited        = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
	ErrUpstream           = New("UPSTREAM_ERROR", http.StatusBadGateway, "backend request failed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrAttendanceRejected = New("ATTENDANCE_REJECTED", http.StatusUnauthorized, "invalid password or already submitted")
	ErrFeatureDisabled    = New("FEATURE_DISABLED", http.StatusNotFound, "feature disabled")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// FromStatus maps a backend HTTP status onto the matching predefined error.
func FromStatus(status int, message string) *Error {
	var base *Error
	switch {
	case status == http.StatusUnauthorized:
		base = ErrUnauthorized
	case status == http.StatusForbidden:
		base = ErrForbidden
	case status == http.StatusNotFound:
		base = ErrNotFound
	case status == http.StatusConflict:
		base = ErrConflict
	case status == http.StatusTooManyRequests:
		base = ErrRateLimited
	case status >= 400 && status < 500:
		base = ErrValidation
	default:
		base = ErrUpstream
	}
	return Clone(base, strings.TrimSpace(message))
}

// IsAuthentication reports whether err means the caller is not signed in.
func IsAuthentication(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusUnauthorized && e.Code != ErrAttendanceRejected.Code {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unauthorized")
}

// IsPermission reports whether err means the caller lacks access to the resource.
func IsPermission(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") || strings.Contains(msg, "permission")
}

// IsRateLimit reports whether err came from backend throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// UserMessage converts err into text suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	appErr := FromError(err)
	switch appErr.Status {
	case http.StatusBadRequest, http.StatusConflict:
		return appErr.Message
	case http.StatusUnauthorized:
		if appErr.Code == ErrAttendanceRejected.Code {
			return appErr.Message
		}
		return "Your session has expired. Please sign in again."
	case http.StatusForbidden:
		return "You do not have permission to access this resource."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment and try again."
	case http.StatusInternalServerError, http.StatusBadGateway:
		return "A server error occurred. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}
