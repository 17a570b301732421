package errors

import (
	"encoding/json"
	"errors"
)

// ErrorCode represents a specific error code.
type ErrorCode string

const (
	GenericErrorCode    ErrorCode = "0"
	BusyErrorCode       ErrorCode = "busy"
	StoppedErrorCode    ErrorCode = "stopped"
	InvalidURLErrorCode ErrorCode = "invalid-url"
	UnknownNodeCode     ErrorCode = "unknown-node"
	RateLimitedCode     ErrorCode = "rate-limited"
)

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface for ErrorResponse.
func (e *ErrorResponse) Error() string {
	errorJSON, _ := json.Marshal(e)
	return string(errorJSON)
}

// Is matches any ErrorResponse carrying the same code, so that
// errors.Is works against the exported sentinels regardless of Details.
func (e *ErrorResponse) Is(target error) bool {
	var t *ErrorResponse
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates an ErrorResponse with the given code and details.
func New(code ErrorCode, details string) *ErrorResponse {
	return &ErrorResponse{Code: code, Details: details}
}

// CreateErrorResponseFromError creates an ErrorResponse from a generic error.
func CreateErrorResponseFromError(err error) error {
	if err == nil {
		return nil
	}
	var errResp *ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}
	return &ErrorResponse{
		Code:    GenericErrorCode,
		Details: err.Error(),
	}
}
