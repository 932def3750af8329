package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSource represents an external source that is unconfigured or unreachable
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeInput represents malformed caller input (bad JSON, missing fields)
	ErrorTypeInput ErrorType = "input"
	// ErrorTypeStore represents the system of record being unreachable
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeTool represents tool execution errors
	ErrorTypeTool ErrorType = "tool"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Source Errors

// ErrSourceDisabled is returned by gateways whose service has no credentials
var ErrSourceDisabled = NewBaseError(ErrorTypeSource, "source disabled", nil)

// ErrSourceUnavailable is returned when an external source call fails
type ErrSourceUnavailable struct {
	*BaseError
	Source string
}

func NewSourceUnavailable(source string, err error) *ErrSourceUnavailable {
	return &ErrSourceUnavailable{
		BaseError: NewBaseError(ErrorTypeSource, fmt.Sprintf("%s unavailable", source), err),
		Source:    source,
	}
}

// Input Errors

// ErrMalformedInput is returned when caller input cannot be parsed or validated
type ErrMalformedInput struct {
	*BaseError
	Field  string
	Reason string
}

func NewMalformedInput(field, reason string, err error) *ErrMalformedInput {
	msg := fmt.Sprintf("malformed input: %s", reason)
	if field != "" {
		msg = fmt.Sprintf("malformed input: %s - %s", field, reason)
	}
	return &ErrMalformedInput{
		BaseError: NewBaseError(ErrorTypeInput, msg, err),
		Field:     field,
		Reason:    reason,
	}
}

// Store Errors

// ErrStoreUnavailable is returned when the system of record cannot be queried
type ErrStoreUnavailable struct {
	*BaseError
	Operation string
}

func NewStoreUnavailable(operation string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store query failed: %s", operation), err),
		Operation: operation,
	}
}

// Tool Errors

// ErrToolExecutionFailed is returned when tool execution fails
type ErrToolExecutionFailed struct {
	*BaseError
	ToolName string
}

func NewToolExecutionFailed(toolName string, err error) *ErrToolExecutionFailed {
	return &ErrToolExecutionFailed{
		BaseError: NewBaseError(ErrorTypeTool, fmt.Sprintf("tool execution failed: %s", toolName), err),
		ToolName:  toolName,
	}
}

// Context Errors

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration, err error) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), err),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typedError interface {
	errorType() ErrorType
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if te, ok := err.(typedError); ok && te.errorType() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsDisabled reports whether err means the source has no credentials
func IsDisabled(err error) bool {
	return stderrors.Is(err, ErrSourceDisabled)
}

// IsRetryable checks if an error is retryable by the caller
func IsRetryable(err error) bool {
	if IsDisabled(err) {
		return false
	}
	if IsErrorType(err, ErrorTypeContext) || IsErrorType(err, ErrorTypeInput) {
		return false
	}
	return IsErrorType(err, ErrorTypeSource) || IsErrorType(err, ErrorTypeStore)
}
