package httpclient

import (
	"fmt"
	"time"
)

// RetryableError is returned by Transport when it gave up waiting for a
// throttled upstream, usually because the request context ended mid-wait.
// StatusCode is the last upstream status; Err is the reason the wait stopped.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
