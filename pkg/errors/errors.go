package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures raised while crawling and committing
type ErrorType string

const (
	ErrorTypeDetailLoad     ErrorType = "detail_load"
	ErrorTypeDateParse      ErrorType = "date_parse"
	ErrorTypeExtraction     ErrorType = "extraction"
	ErrorTypeSessionExpired ErrorType = "session_expired"
	ErrorTypeEmptyBatch     ErrorType = "empty_batch"
	ErrorTypeCommit         ErrorType = "commit"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error carries a failure type alongside the underlying cause
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// New creates a typed error wrapping err (which may be nil)
func New(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

var (
	// ErrSessionExpired means the feed session lost its authentication state.
	ErrSessionExpired = &Error{Type: ErrorTypeSessionExpired, Message: "feed session is not authenticated"}

	// ErrEmptyBatch means a run produced no records to commit.
	ErrEmptyBatch = &Error{Type: ErrorTypeEmptyBatch, Message: "batch contains no post records"}
)

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether a whole run may be attempted again after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case ErrorTypeNetwork, ErrorTypeCommit:
		return true
	case ErrorTypeSessionExpired, ErrorTypeEmptyBatch, ErrorTypeConfig:
		return false
	default:
		return false
	}
}

// IsCandidateFault reports whether err only concerns a single candidate
// and the scan can continue past it.
func IsCandidateFault(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeDetailLoad, ErrorTypeDateParse, ErrorTypeExtraction:
		return true
	default:
		return false
	}
}
