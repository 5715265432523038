package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedError_Creation(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() *UnifiedError
		expected *UnifiedError
	}{
		{
			name: "fetch failure",
			builder: func() *UnifiedError {
				return FetchFailure(CodeFetchRejected, "Fetch rejected").
					WithResource("p1/goals").
					WithSubjectID("p1").
					Build()
			},
			expected: &UnifiedError{
				Type:      ErrorTypeFetchFailure,
				Code:      CodeFetchRejected,
				Message:   "Fetch rejected",
				Resource:  "p1/goals",
				SubjectID: "p1",
				Severity:  SeverityMedium,
				Retryable: true,
			},
		},
		{
			name: "policy misconfiguration",
			builder: func() *UnifiedError {
				return PolicyMisconfiguration(CodeUnknownCategory, "No retention policy").
					WithDetails("category 99").
					Build()
			},
			expected: &UnifiedError{
				Type:      ErrorTypePolicyMisconfiguration,
				Code:      CodeUnknownCategory,
				Message:   "No retention policy",
				Details:   "category 99",
				Severity:  SeverityCritical,
				Retryable: false,
			},
		},
		{
			name: "retryable timeout",
			builder: func() *UnifiedError {
				return Timeout(CodeFetchTimeout, "Fetch timed out").
					WithRetryAfter(5 * time.Second).
					Build()
			},
			expected: &UnifiedError{
				Type:       ErrorTypeTimeout,
				Code:       CodeFetchTimeout,
				Message:    "Fetch timed out",
				Severity:   SeverityMedium,
				Retryable:  true,
				RetryAfter: 5 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder()

			assert.Equal(t, tt.expected.Type, err.Type)
			assert.Equal(t, tt.expected.Code, err.Code)
			assert.Equal(t, tt.expected.Message, err.Message)
			assert.Equal(t, tt.expected.Details, err.Details)
			assert.Equal(t, tt.expected.Resource, err.Resource)
			assert.Equal(t, tt.expected.SubjectID, err.SubjectID)
			assert.Equal(t, tt.expected.Severity, err.Severity)
			assert.Equal(t, tt.expected.Retryable, err.Retryable)
			assert.Equal(t, tt.expected.RetryAfter, err.RetryAfter)
			assert.NotEmpty(t, err.File)
		})
	}
}

func TestUnifiedError_ErrorInterface(t *testing.T) {
	err := Validation(CodeInvalidInput, "Unknown view").
		WithDetails("view \"x\"").
		Build()
	assert.Equal(t, `[VALIDATION:INVALID_INPUT] Unknown view: view "x"`, err.Error())

	err2 := NotFound(CodeFetcherNotFound, "No fetcher").Build()
	assert.Equal(t, "[NOT_FOUND:FETCHER_NOT_FOUND] No fetcher", err2.Error())
}

func TestUnifiedError_Unwrap(t *testing.T) {
	originalErr := errors.New("connection reset")
	err := FetchFailure(CodeFetchRejected, "Fetch rejected").
		WithCause(originalErr).
		Build()

	assert.Equal(t, originalErr, err.Unwrap())
	assert.True(t, errors.Is(err, originalErr))
}

func TestErrorType_Checking(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{"fetch failure", FetchFailure("X", "x").Build(), IsFetchFailure, true},
		{"policy misconfiguration", PolicyMisconfiguration("X", "x").Build(), IsPolicyMisconfiguration, true},
		{"prefetch skipped", PrefetchSkipped("X", "x").Build(), IsPrefetchSkipped, true},
		{"unavailable", Unavailable("X", "x").Build(), IsUnavailable, true},
		{"timeout", Timeout("X", "x").Build(), IsTimeout, true},
		{"wrong type", Validation("X", "x").Build(), IsFetchFailure, false},
		{"plain error", errors.New("plain"), IsFetchFailure, false},
		{"wrapped with fmt", fmt.Errorf("outer: %w", FetchFailure("X", "x").Build()), IsFetchFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.checkFn(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(FetchFailure("X", "x").Build()))
	assert.False(t, IsRetryable(PolicyMisconfiguration("X", "x").Build()))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "op", "msg"))
	})

	t.Run("preserves unified type", func(t *testing.T) {
		inner := FetchFailure(CodeFetchRejected, "inner").WithSubjectID("p1").Build()
		wrapped := Wrap(inner, "Resolve", "outer")

		require.NotNil(t, wrapped)
		assert.Equal(t, ErrorTypeFetchFailure, wrapped.Type)
		assert.Equal(t, CodeFetchRejected, wrapped.Code)
		assert.Equal(t, "inner", wrapped.Details)
		assert.Equal(t, "p1", wrapped.SubjectID)
		assert.Equal(t, "Resolve", wrapped.Operation)
		assert.True(t, errors.Is(wrapped, inner))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		wrapped := Wrap(errors.New("boom"), "Sweep", "sweep failed")
		assert.Equal(t, ErrorTypeInternal, wrapped.Type)
		assert.Equal(t, CodeWrapped, wrapped.Code)
		assert.Equal(t, "boom", wrapped.Details)
	})
}

func TestGetSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, GetSeverity(PolicyMisconfiguration("X", "x").Build()))
	assert.Equal(t, SeverityMedium, GetSeverity(errors.New("plain")))
}

func TestUnifiedError_String(t *testing.T) {
	err := FetchFailure(CodeFetchRejected, "Fetch rejected").
		WithOperation("Resolve").
		WithResource("p1/goals").
		WithCause(errors.New("eof")).
		Build()

	s := err.String()
	assert.Contains(t, s, "Operation: Resolve")
	assert.Contains(t, s, "Resource: p1/goals")
	assert.Contains(t, s, "Cause: eof")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeCircuitOpen, CodeOf(Unavailable(CodeCircuitOpen, "open").Build()))
	assert.Equal(t, CodeQueueFull, CodeOf(fmt.Errorf("ctx: %w", PrefetchSkipped(CodeQueueFull, "full").Build())))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation(CodeInvalidInput, "x").Build(), 400},
		{NotFound(CodeSessionNotFound, "x").Build(), 404},
		{FetchFailure(CodeFetchRejected, "x").Build(), 502},
		{Unavailable(CodeCircuitOpen, "x").Build(), 503},
		{Timeout(CodeFetchTimeout, "x").Build(), 504},
		{errors.New("plain"), 500},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestNewErrorResponse_HidesPlainErrors(t *testing.T) {
	resp := NewErrorResponse(errors.New("db password wrong"), "req-1")
	assert.Equal(t, ErrorTypeInternal, resp.Type)
	assert.NotContains(t, resp.Message, "password")
	assert.Equal(t, "req-1", resp.RequestID)
}
