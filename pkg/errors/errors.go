// Package errors provides structured error handling for the reporting subsystem.
//
// Every failure the core can produce is fatal for the current iteration's report:
// configuration errors at catalog construction, access to a field that the active
// catalog never declared, and catalog/loader mismatches. None of them are retryable.
// File errors come from the concrete sinks.
//
// # Basic Usage
//
//	err := errors.New(errors.ErrorTypeUnregisteredField, "field not registered").
//	    WithDetail("field", "RMS_DISP_Q").
//	    WithDetail("namespace", "history")
//
//	if errors.IsType(err, errors.ErrorTypeUnregisteredField) {
//	    // programming error: catalog and caller disagree
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents unrecognized or contradictory configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeUnregisteredField represents access to a field absent from the active catalog
	ErrorTypeUnregisteredField ErrorType = "unregistered_field"
	// ErrorTypeInvariant represents a broken catalog/loader lock-step or duplicate registration
	ErrorTypeInvariant ErrorType = "invariant"
	// ErrorTypeFile represents file operation errors raised by sinks
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeData represents malformed input data (solver traces, sink payloads)
	ErrorTypeData ErrorType = "data"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already a structured Error, its stack trace is preserved. Returns nil if
// err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable reports whether err is worth retrying. Nothing in the
// reporting path is: a failure is either a logic defect or a sink I/O error
// that the enclosing solver loop must surface.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeInternal, ErrorTypeConfig, ErrorTypeUnregisteredField,
		ErrorTypeInvariant, ErrorTypeFile, ErrorTypeData:
		return false
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Is and As re-export the standard library helpers so callers that import
// this package under the name errors keep access to them.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// captureStack captures the current call stack up to maxFrames deep
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
