// Package errors provides the standardized error shape used across the
// acquisition pipeline and control plane, per spec.md §7's error taxonomy:
// configuration, parse, transform, store-transient, store-permanent, and
// writer-I/O errors.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// AppError is a structured application error carrying enough context (code,
// component, operation, cause) to diagnose a failure without re-deriving it
// from a bare string.
type AppError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Component string                 `json:"component"`
	Operation string                 `json:"operation"`
	Cause     error                  `json:"cause,omitempty"`
	Site      string                 `json:"site,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  Severity               `json:"severity"`
}

// Severity classifies how a caller should react to an error.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Error codes, one family per §7 category.
const (
	// Configuration errors: fatal to the load that encountered them.
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeConfigUndefinedRef = "CONFIG_UNDEFINED_REFERENCE"

	// Parse errors: the offending record is dropped, the pipeline continues.
	CodeParseNoMatch     = "PARSE_NO_MATCH"
	CodeParseBadValue    = "PARSE_BAD_VALUE"
	CodeParseUnknownType = "PARSE_UNKNOWN_FIELD_TYPE"

	// Transform computational errors: the transform returns nil, upstream
	// flow continues.
	CodeTransformMissingField = "TRANSFORM_MISSING_FIELD"
	CodeTransformOutOfRange   = "TRANSFORM_OUT_OF_RANGE"

	// Store transient errors: retried with backoff.
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeStoreDeadlock    = "STORE_DEADLOCK"

	// Store permanent errors: the operation returns null/empty and logs.
	CodeStoreNotFound        = "STORE_NOT_FOUND"
	CodeStoreConstraint      = "STORE_CONSTRAINT_VIOLATION"
	CodeStoreMissingRelation = "STORE_MISSING_RELATION"

	// Writer I/O errors: propagated to the caller.
	CodeWriterIO = "WRITER_IO_FAILURE"
)

// New creates a standardized error with medium severity.
func New(code, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Code:      code,
		Message:   message,
		Component: component,
		Operation: operation,
		Site:      fmt.Sprintf("%s:%d", file, line),
		Timestamp: time.Now(),
		Severity:  SeverityMedium,
	}
}

// NewWithSeverity creates an error with an explicit severity.
func NewWithSeverity(severity Severity, code, component, operation, message string) *AppError {
	err := New(code, component, operation, message)
	err.Severity = severity
	return err
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Wrap attaches a cause and returns the receiver for chaining.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a diagnostic key/value, e.g. the field name and
// value that failed to convert.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsTransient reports whether the store should retry this error with
// backoff rather than surface it to the caller as empty/null.
func (e *AppError) IsTransient() bool {
	switch e.Code {
	case CodeStoreUnavailable, CodeStoreDeadlock:
		return true
	default:
		return false
	}
}

// ConfigError creates a fatal configuration error.
func ConfigError(operation, message string) *AppError {
	return New(CodeConfigInvalid, "config", operation, message)
}

// ParseError creates a parse error to be logged and dropped.
func ParseError(operation, message string) *AppError {
	return New(CodeParseNoMatch, "parser", operation, message)
}

// StoreTransientError creates a retryable store error.
func StoreTransientError(operation, message string) *AppError {
	return New(CodeStoreUnavailable, "control.store", operation, message)
}

// StorePermanentError creates a non-retryable store error.
func StorePermanentError(operation, message string) *AppError {
	return New(CodeStoreNotFound, "control.store", operation, message)
}

// WriterError creates a writer I/O error.
func WriterError(operation, message string) *AppError {
	return NewWithSeverity(SeverityHigh, CodeWriterIO, "writer", operation, message)
}

// As reports whether err is (or wraps) an *AppError.
func As(err error) (*AppError, bool) {
	ae, ok := err.(*AppError)
	if ok {
		return ae, true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return As(u.Unwrap())
	}
	return nil, false
}
