package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode identifies a class of failure that the bot boundary knows how to
// present to a user.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeForbidden  ErrorCode = "PERMISSION_DENIED"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Giveaway lifecycle
	ErrCodeParseFailure  ErrorCode = "PARSE_FAILURE"
	ErrCodeDuplicateID   ErrorCode = "DUPLICATE_ID"
	ErrCodeNotActive     ErrorCode = "NOT_ACTIVE"
	ErrCodeNotEnded      ErrorCode = "NOT_ENDED"
	ErrCodeAlreadyJoined ErrorCode = "ALREADY_JOINED"
	ErrCodeIneligible    ErrorCode = "INELIGIBLE"
	ErrCodeCooldown      ErrorCode = "COOLDOWN"

	// Subscriptions
	ErrCodeFeatureLocked      ErrorCode = "FEATURE_LOCKED"
	ErrCodePaymentUnavailable ErrorCode = "PAYMENT_UNAVAILABLE"
	ErrCodeAlreadySubscribed  ErrorCode = "ALREADY_SUBSCRIBED"

	// Storage / external
	ErrCodeStorage     ErrorCode = "STORAGE_ERROR"
	ErrCodeExternalAPI ErrorCode = "EXTERNAL_API_ERROR"
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so package sentinels work
// with errors.Is even after details were attached to a copy.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsInternal reports whether the error must not be shown to users verbatim.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeStorage ||
		e.Code == ErrCodeExternalAPI
}

// WithDetail attaches a detail value and returns the same error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Derive copies a sentinel so details can be attached without mutating it.
func Derive(sentinel *AppError) *AppError {
	return New(sentinel.Code, sentinel.Message)
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("Storage operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewExternalAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeExternalAPI, fmt.Sprintf("External API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError finds the first AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in the chain, or
// ErrCodeInternal for anything else.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// DetailString reads a string detail from the first AppError in the chain.
func DetailString(err error, key string) string {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Details == nil {
		return ""
	}
	v, _ := appErr.Details[key].(string)
	return v
}

// IneligibleReason returns the failed entry predicate carried by an
// INELIGIBLE error, or "" for any other error.
func IneligibleReason(err error) string {
	if CodeOf(err) != ErrCodeIneligible {
		return ""
	}
	return DetailString(err, "reason")
}
