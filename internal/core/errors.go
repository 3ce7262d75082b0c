package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Provider errors
	ErrNoData              = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrProviderFailed      = &Error{Code: "PROVIDER_FAILED", Message: "market data provider failed"}
	ErrUniverseUnavailable = &Error{Code: "UNIVERSE_UNAVAILABLE", Message: "instrument universe listing unavailable"}

	// Evaluation errors. Insufficient history is deliberately NOT here:
	// an evaluator treats a short series as a definitive non-match.
	ErrBadSeries = &Error{Code: "BAD_SERIES", Message: "malformed price series"}

	// Storage errors. A run whose results cannot be saved has no value,
	// so these are fatal to the run.
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "document storage failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}
)
