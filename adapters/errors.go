package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by errors.Is for 404 responses and empty lookups.
var ErrNotFound = errors.New("not found upstream")

// APIError is returned for any non-2xx upstream response.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream %s returned %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// DecodeError wraps a response body that could not be parsed.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an upstream call is worth repeating:
// transport failures, 429 and 5xx are; cancellations, other 4xx and
// malformed payloads are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}

	if errors.Is(err, ErrNotFound) {
		return false
	}

	return true
}
