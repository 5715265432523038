package errors

import (
	"errors"
	"net/http"
)

// ErrorResponse is the JSON body written for a failed request.
type ErrorResponse struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	RequestID string    `json:"requestId,omitempty"`
}

// HTTPStatusCode maps err to a response status. Errors outside the
// unified type are internal.
func HTTPStatusCode(err error) int {
	var unifiedErr *UnifiedError
	if !errors.As(err, &unifiedErr) {
		return http.StatusInternalServerError
	}

	switch unifiedErr.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeFetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the response body for err. Internal details of
// non-unified errors are not exposed.
func NewErrorResponse(err error, requestID string) ErrorResponse {
	var unifiedErr *UnifiedError
	if !errors.As(err, &unifiedErr) {
		return ErrorResponse{
			Type:      ErrorTypeInternal,
			Code:      "INTERNAL_ERROR",
			Message:   "Internal server error",
			RequestID: requestID,
		}
	}
	return ErrorResponse{
		Type:      unifiedErr.Type,
		Code:      unifiedErr.Code,
		Message:   unifiedErr.Message,
		Details:   unifiedErr.Details,
		Retryable: unifiedErr.Retryable,
		RequestID: requestID,
	}
}
