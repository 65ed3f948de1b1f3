// Package errors defines the error taxonomy of the shrinker.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown                  = "UNKNOWN_ERROR"
	CodeParseError               = "PARSE_ERROR"
	CodeClassLookup              = "CLASS_LOOKUP_ERROR"
	CodeIncrementalRunImpossible = "INCREMENTAL_RUN_IMPOSSIBLE"
	CodeInvalidInput             = "INVALID_INPUT"
	CodeConfigError              = "CONFIG_ERROR"
	CodeIOError                  = "IO_ERROR"
	CodeStateError               = "STATE_ERROR"
	CodeNotFound                 = "NOT_FOUND"
)

// AppError is an error with a code from the taxonomy above. Errors are
// compared by code: errors.Is(err, &AppError{Code: CodeStateError}).
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// IncrementalRunImpossible creates the signal raised when the inputs of an
// incremental run cannot be expressed as a patch of the previous graph.
func IncrementalRunImpossible(format string, args ...interface{}) *AppError {
	return Newf(CodeIncrementalRunImpossible, format, args...)
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &AppError{Code: code})
}

func IsParseError(err error) bool  { return HasCode(err, CodeParseError) }
func IsClassLookup(err error) bool { return HasCode(err, CodeClassLookup) }
func IsStateError(err error) bool  { return HasCode(err, CodeStateError) }
func IsNotFound(err error) bool    { return HasCode(err, CodeNotFound) }

// IsIncrementalRunImpossible reports whether the caller should fall back
// to a full run.
func IsIncrementalRunImpossible(err error) bool {
	return HasCode(err, CodeIncrementalRunImpossible)
}

// GetErrorCode returns the code of the outermost AppError, or CodeUnknown.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
