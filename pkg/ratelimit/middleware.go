// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// UnknownIdentifier is used when a request carries no usable client address.
// All such requests share one quota.
const UnknownIdentifier = "unknown-ip"

// IdentifierFunc extracts the rate limit identifier from an HTTP request.
type IdentifierFunc func(r *http.Request) string

// ForwardedIdentifier uses the first X-Forwarded-For entry, then X-Real-IP,
// and falls back to UnknownIdentifier. Use it behind a trusted reverse proxy.
func ForwardedIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// The first entry is the original client
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return UnknownIdentifier
}

// RemoteIdentifier uses the host part of the connection's remote address and
// ignores proxy headers. Use it when clients connect directly.
func RemoteIdentifier(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return UnknownIdentifier
	}
	return host
}

// MiddlewareConfig configures the rate limiting middleware.
type MiddlewareConfig struct {
	// Limiter renders the verdicts.
	Limiter Checker

	// IdentifierFunc extracts the identifier from requests.
	// If nil, ForwardedIdentifier is used.
	IdentifierFunc IdentifierFunc

	// OnLimited is called when a request is denied.
	// If nil, a default 429 JSON response is sent.
	OnLimited func(w http.ResponseWriter, r *http.Request, result *Result)
}

// Middleware creates an HTTP middleware that gates requests on the limiter.
// Allowed requests carry the X-RateLimit-* headers and their Result in the
// request context.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		// No limiter configured, pass through
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	if cfg.IdentifierFunc == nil {
		cfg.IdentifierFunc = ForwardedIdentifier
	}

	if cfg.OnLimited == nil {
		cfg.OnLimited = defaultOnLimited
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := cfg.IdentifierFunc(r)

			result, err := cfg.Limiter.Check(identifier)
			if err != nil {
				slog.Warn("Rate limit check rejected request", "error", err)
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}

			ctx := context.WithValue(r.Context(), resultKey{}, result)
			r = r.WithContext(ctx)

			if !result.Success {
				cfg.OnLimited(w, r, result)
				return
			}

			SetHeaders(w.Header(), result)

			next.ServeHTTP(w, r)
		})
	}
}

// resultKey is the context key for the rate limit result.
type resultKey struct{}

// ResultFromContext extracts the rate limit result from the request context.
func ResultFromContext(ctx context.Context) *Result {
	if result, ok := ctx.Value(resultKey{}).(*Result); ok {
		return result
	}
	return nil
}

// SetHeaders writes X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (epoch seconds).
func SetHeaders(h http.Header, result *Result) {
	if result == nil {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// RetryAfterSeconds rounds the retry delay up to whole seconds.
func RetryAfterSeconds(result *Result) int64 {
	if result == nil || result.RetryAfter <= 0 {
		return 0
	}
	return int64(math.Ceil(result.RetryAfter.Seconds()))
}

// limitedResponse is the body of a 429 response.
type limitedResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	Limit      int64     `json:"limit"`
	Remaining  int64     `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
	Window     Window    `json:"window"`
	RetryAfter int64     `json:"retryAfter"`
}

// defaultOnLimited sends a default 429 response.
func defaultOnLimited(w http.ResponseWriter, r *http.Request, result *Result) {
	retryAfter := RetryAfterSeconds(result)

	exceeded := result.Exceeded
	if exceeded == "" {
		exceeded = result.Window
	}

	SetHeaders(w.Header(), result)
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

	writeJSON(w, http.StatusTooManyRequests, limitedResponse{
		Error:      "Too many requests",
		Message:    "You have exceeded the " + string(exceeded) + " request limit. Please try again later.",
		Limit:      result.Limit,
		Remaining:  result.Remaining,
		ResetAt:    result.ResetAt.UTC(),
		Window:     result.Window,
		RetryAfter: retryAfter,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
