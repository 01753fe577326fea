package hubspot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error types HubSpot reports for throttled requests.
const (
	ErrorTypeRateLimit  = "RATE_LIMIT"
	ErrorTypeRateLimits = "RATE_LIMITS"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode    int
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
	Type          string `json:"errorType"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("hubspot: status %d: %s", e.StatusCode, msg)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ErrorType returns the HubSpot error type, falling back to the category.
func (e *APIError) ErrorType() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Category
}

// Detail returns the API message, or the standard status text when the
// body carried none.
func (e *APIError) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// IsStatus reports whether err wraps an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{}
	// Bodies that are not JSON still produce an error with the status code.
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = string(body)
	}
	apiErr.StatusCode = statusCode
	return apiErr
}
