package monday

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is a non-2xx HTTP response from the board API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("board api returned %d: %s", e.StatusCode, e.Body)
}

// APIError is a GraphQL level failure reported in the response body.
type APIError struct {
	Code     string
	Messages []string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return "board api error: " + strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("board api error %s: %s", e.Code, strings.Join(e.Messages, "; "))
}

// TransportError wraps a failure to complete the HTTP round trip.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "board api request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Error codes the platform uses for budget and rate exhaustion.
var retryableCodes = map[string]bool{
	"ComplexityException":         true,
	"COMPLEXITY_BUDGET_EXHAUSTED": true,
	"RATE_LIMIT_EXCEEDED":         true,
	"maxConcurrencyExceeded":      true,
	"INTERNAL_SERVER_ERROR":       true,
}

// isRetryableError reports whether a failed call may succeed if repeated.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retryableCodes[apiErr.Code]
	}

	return false
}
