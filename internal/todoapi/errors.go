package todoapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer of the todo API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Method     string `json:"method,omitempty"`
	URL        string `json:"url,omitempty"`
	Body       string `json:"body,omitempty"`
}

func (e *APIError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("todo API error (%d) on %s %s: %s", e.StatusCode, e.Method, e.URL, e.Message)
	}
	return fmt.Sprintf("todo API error (%d): %s", e.StatusCode, e.Message)
}

// Is matches another *APIError with the same status code, so the sentinels
// below work with errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.StatusCode == e.StatusCode
}

func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

var (
	ErrBadRequest     = NewAPIError(http.StatusBadRequest, "Bad request")
	ErrNotFound       = NewAPIError(http.StatusNotFound, "Resource not found")
	ErrRateLimited    = NewAPIError(http.StatusTooManyRequests, "Rate limit exceeded")
	ErrInternalServer = NewAPIError(http.StatusInternalServerError, "Internal server error")
)

func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func IsRateLimited(err error) bool { return hasStatus(err, http.StatusTooManyRequests) }

func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 500
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// NetworkError is a request that never got an HTTP answer.
type NetworkError struct {
	Operation string `json:"operation"`
	URL       string `json:"url"`
	Err       error  `json:"error"`
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s to %s: %v", e.Operation, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
