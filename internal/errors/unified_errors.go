// Package errors provides the unified error type used across the session
// orchestrator. Every failure that crosses a package boundary is a
// *UnifiedError carrying a type, a stable code and the operation context,
// so callers can branch on errors.Is / errors.As without string matching.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// ErrorTypeFetchFailure marks a rejected fetch collaborator call. It is
	// local to the caller that awaited the fetch.
	ErrorTypeFetchFailure ErrorType = "FETCH_FAILURE"
	// ErrorTypePolicyMisconfiguration marks a code defect: a category with
	// no retention policy or a policy violating its invariants.
	ErrorTypePolicyMisconfiguration ErrorType = "POLICY_MISCONFIGURATION"
	// ErrorTypePrefetchSkipped is an outcome, not a failure. It is logged and
	// counted, never returned to a foreground caller.
	ErrorTypePrefetchSkipped ErrorType = "PREFETCH_SKIPPED"

	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

// ErrorSeverity defines the severity level for logging and monitoring.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type of the module.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details"`

	Operation string `json:"operation"`
	Resource  string `json:"resource"`  // cache key or category being operated on
	SubjectID string `json:"subjectId"` // record owner, when known

	Severity   ErrorSeverity `json:"severity"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Cause      error         `json:"-"`

	StackTrace []string `json:"stackTrace,omitempty"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// String provides a detailed multi-line representation for debug logging.
func (e *UnifiedError) String() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Error: %s\n", e.Error()))
	if e.Operation != "" {
		builder.WriteString(fmt.Sprintf("Operation: %s\n", e.Operation))
	}
	if e.Resource != "" {
		builder.WriteString(fmt.Sprintf("Resource: %s\n", e.Resource))
	}
	if e.SubjectID != "" {
		builder.WriteString(fmt.Sprintf("SubjectID: %s\n", e.SubjectID))
	}
	builder.WriteString(fmt.Sprintf("Severity: %s\n", e.Severity))
	builder.WriteString(fmt.Sprintf("Retryable: %t\n", e.Retryable))
	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("Cause: %v\n", e.Cause))
	}
	if e.File != "" && e.Line > 0 {
		builder.WriteString(fmt.Sprintf("Location: %s:%d\n", e.File, e.Line))
	}

	return builder.String()
}

// ============================================================================
// ERROR BUILDER FOR FLUENT CONSTRUCTION
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a new error builder with the specified type and message.
func NewError(errType ErrorType, code, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(1)

	return &ErrorBuilder{
		error: &UnifiedError{
			Type:       errType,
			Code:       code,
			Message:    message,
			Severity:   SeverityMedium,
			File:       file,
			Line:       line,
			StackTrace: captureStackTrace(),
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithSubjectID adds the record owner to the error.
func (b *ErrorBuilder) WithSubjectID(subjectID string) *ErrorBuilder {
	b.error.SubjectID = subjectID
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithRetryable marks the error as retryable.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// WithRetryAfter sets how long to wait before retrying.
func (b *ErrorBuilder) WithRetryAfter(duration time.Duration) *ErrorBuilder {
	b.error.RetryAfter = duration
	b.error.Retryable = true
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// FetchFailure creates a fetch failure error.
func FetchFailure(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeFetchFailure, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(true)
}

// PolicyMisconfiguration creates a policy misconfiguration error.
func PolicyMisconfiguration(code, message string) *ErrorBuilder {
	return NewError(ErrorTypePolicyMisconfiguration, code, message).
		WithSeverity(SeverityCritical).
		WithRetryable(false)
}

// PrefetchSkipped creates a prefetch skipped outcome.
func PrefetchSkipped(code, message string) *ErrorBuilder {
	return NewError(ErrorTypePrefetchSkipped, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Validation creates a validation error.
func Validation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// NotFound creates a not found error.
func NotFound(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Timeout creates a timeout error.
func Timeout(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeTimeout, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(true)
}

// Unavailable creates an error for a collaborator that refuses work, such
// as an open circuit breaker or a pool that is shutting down.
func Unavailable(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnavailable, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(true)
}

// Internal creates an internal error.
func Internal(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(false)
}

// ============================================================================
// ERROR CLASSIFICATION AND CHECKING
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsFetchFailure checks if an error is a fetch failure.
func IsFetchFailure(err error) bool {
	return IsType(err, ErrorTypeFetchFailure)
}

// IsPolicyMisconfiguration checks if an error is a policy misconfiguration.
func IsPolicyMisconfiguration(err error) bool {
	return IsType(err, ErrorTypePolicyMisconfiguration)
}

// IsPrefetchSkipped checks if an error is a prefetch skipped outcome.
func IsPrefetchSkipped(err error) bool {
	return IsType(err, ErrorTypePrefetchSkipped)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return IsType(err, ErrorTypeTimeout)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return IsType(err, ErrorTypeUnavailable)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Retryable
	}
	return false
}

// CodeOf returns the code of the outermost UnifiedError in err's chain, or
// "" when there is none.
func CodeOf(err error) string {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Code
	}
	return ""
}

// Is and As forward to the standard library so callers importing this
// package need no alias for it.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// GetSeverity returns the severity of an error.
func GetSeverity(err error) ErrorSeverity {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Severity
	}
	return SeverityMedium
}

// ============================================================================
// ERROR WRAPPING AND CONTEXT PRESERVATION
// ============================================================================

// Wrap wraps an existing error with additional context while preserving the
// original error chain.
func Wrap(err error, operation, message string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return &UnifiedError{
			Type:       existingErr.Type,
			Code:       existingErr.Code,
			Message:    message,
			Details:    existingErr.Message,
			Operation:  operation,
			Resource:   existingErr.Resource,
			SubjectID:  existingErr.SubjectID,
			Severity:   existingErr.Severity,
			Retryable:  existingErr.Retryable,
			Cause:      err,
			StackTrace: existingErr.StackTrace,
			File:       existingErr.File,
			Line:       existingErr.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:       ErrorTypeInternal,
		Code:       CodeWrapped,
		Message:    message,
		Details:    err.Error(),
		Operation:  operation,
		Severity:   SeverityMedium,
		Cause:      err,
		File:       file,
		Line:       line,
		StackTrace: captureStackTrace(),
	}
}

// ============================================================================
// UTILITY FUNCTIONS
// ============================================================================

// captureStackTrace captures the current stack trace for debugging.
func captureStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	var stack []string

	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}

	return stack
}
