package errors

import (
	"errors"
	"fmt"
	"net/http"
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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid phone number, email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Report card lifecycle errors.
var (
	ErrReportLocked      = New("REPORT_LOCKED", http.StatusConflict, "report card is published and can no longer be edited")
	ErrAlreadyPublished  = New("ALREADY_PUBLISHED", http.StatusConflict, "report card already published")
	ErrIncompleteScoring = New("INCOMPLETE_SCORING", http.StatusUnprocessableEntity, "not every active aspect has been scored")
	ErrMissingNarratives = New("MISSING_NARRATIVES", http.StatusUnprocessableEntity, "some aspects are missing a narrative")
)

// Narrative provider errors.
var (
	ErrNarrativeUnconfigured = New("NARRATIVE_UNCONFIGURED", http.StatusServiceUnavailable, "narrative generator is not configured")
	ErrNarrativeUnauthorized = New("NARRATIVE_UNAUTHORIZED", http.StatusBadGateway, "narrative provider rejected the API key")
	ErrNarrativeRateLimited  = New("NARRATIVE_RATE_LIMITED", http.StatusTooManyRequests, "narrative provider rate limit reached, try again later")
	ErrNarrativeUnavailable  = New("NARRATIVE_UNAVAILABLE", http.StatusBadGateway, "narrative provider could not be reached")
)

// Is matches errors by code so cloned errors compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

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
