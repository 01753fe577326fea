package resilience

import (
	"errors"
	"net/http"
)

// Error types HubSpot reports in the body of throttled responses.
const (
	errorTypeRateLimit  = "RATE_LIMIT"
	errorTypeRateLimits = "RATE_LIMITS"
)

type statusCoder interface {
	HTTPStatus() int
}

type errorTyper interface {
	ErrorType() string
}

// IsRateLimit reports whether err signals throttling. Any error in the
// chain exposing HTTPStatus() == 429, or an ErrorType() of RATE_LIMIT or
// RATE_LIMITS, counts.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() == http.StatusTooManyRequests {
		return true
	}

	var et errorTyper
	if errors.As(err, &et) {
		switch et.ErrorType() {
		case errorTypeRateLimit, errorTypeRateLimits:
			return true
		}
	}
	return false
}

// RateLimitError is a bare throttling error for callers without a richer
// transport error to return.
type RateLimitError struct {
	Msg string
}

func (e *RateLimitError) Error() string {
	if e.Msg == "" {
		return "rate limited"
	}
	return e.Msg
}

// HTTPStatus implements the status check used by IsRateLimit.
func (e *RateLimitError) HTTPStatus() int { return http.StatusTooManyRequests }
