package httpclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseRetryHeaders extracts retry hints from the standard Retry-After header
// (delta seconds or HTTP date) and X-RateLimit-Reset (epoch seconds).
//
// Gemini sends Retry-After on 429; X-RateLimit-Reset is what notely itself
// emits, so two instances can be chained.
func ParseRetryHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	if retryAfter := strings.TrimSpace(headers.Get("Retry-After")); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			info.RetryAfter = time.Duration(seconds) * time.Second
		} else if at, err := http.ParseTime(retryAfter); err == nil {
			if d := time.Until(at); d > 0 {
				info.RetryAfter = d
			}
		}
	}

	if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil && epoch > 0 {
			info.ResetTime = epoch
		}
	}

	return info
}
