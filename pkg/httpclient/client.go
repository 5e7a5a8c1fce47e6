// Package httpclient provides a retrying http.RoundTripper for upstream APIs
// that signal throttling with 429/503 and Retry-After.
package httpclient

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

type RateLimitInfo struct {
	RetryAfter time.Duration
	ResetTime  int64
}

type RateLimitHeaderParser func(http.Header) RateLimitInfo

type RetryStrategyFunc func(int) RetryStrategy

// Defaults used by NewTransport.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
)

// Transport retries throttled and transiently failing requests.
//
// Only responses are retried; transport errors are returned as is. A request
// whose body cannot be replayed is never retried.
type Transport struct {
	base         http.RoundTripper
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	headerParser RateLimitHeaderParser
	strategyFunc RetryStrategyFunc
	sleep        func(ctx context.Context, d time.Duration) error
}

type Option func(*Transport)

// WithBase sets the underlying round tripper.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) {
		if rt != nil {
			t.base = rt
		}
	}
}

func WithMaxRetries(max int) Option {
	return func(t *Transport) {
		if max >= 0 {
			t.maxRetries = max
		}
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(t *Transport) {
		t.baseDelay = delay
	}
}

// WithMaxDelay caps a single wait. When the upstream asks for longer, the
// throttled response is returned instead of waiting.
func WithMaxDelay(delay time.Duration) Option {
	return func(t *Transport) {
		t.maxDelay = delay
	}
}

func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(t *Transport) {
		t.headerParser = parser
	}
}

func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(t *Transport) {
		if strategyFunc != nil {
			t.strategyFunc = strategyFunc
		}
	}
}

// NewTransport creates a retrying transport over http.DefaultTransport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		base:         http.DefaultTransport,
		maxRetries:   DefaultMaxRetries,
		baseDelay:    DefaultBaseDelay,
		maxDelay:     DefaultMaxDelay,
		headerParser: ParseRetryHeaders,
		strategyFunc: DefaultRetryStrategy,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewClient returns an http.Client using a retrying transport.
func NewClient(opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(opts...)}
}

func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attemptReq.Body = body
			}
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		strategy := t.strategyFunc(resp.StatusCode)
		if strategy == NoRetry || !replayable || attempt >= t.maxRetries {
			return resp, nil
		}

		var info RateLimitInfo
		if t.headerParser != nil {
			info = t.headerParser(resp.Header)
		}

		delay := t.calculateDelay(strategy, attempt, info)
		if delay <= 0 || (t.maxDelay > 0 && delay > t.maxDelay) {
			return resp, nil
		}

		drain(resp)
		t.logRetry(strategy, delay, attempt, resp.StatusCode)

		if err := t.sleep(req.Context(), delay); err != nil {
			return nil, &RetryableError{
				StatusCode: resp.StatusCode,
				Message:    "retry aborted",
				RetryAfter: delay,
				Err:        err,
			}
		}
	}
}

func (t *Transport) calculateDelay(strategy RetryStrategy, attempt int, info RateLimitInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if info.RetryAfter > 0 {
			return info.RetryAfter
		}

		if info.ResetTime > 0 {
			delay := time.Until(time.Unix(info.ResetTime, 0))
			if delay > 0 {
				return delay
			}
		}

		exponentialDelay := time.Duration(math.Pow(2, float64(attempt))) * t.baseDelay
		jitter := time.Duration(float64(exponentialDelay) * 0.1)
		return exponentialDelay + jitter

	case ConservativeRetry:
		if attempt >= 1 {
			return 0
		}
		return t.baseDelay

	default:
		return 0
	}
}

func (t *Transport) logRetry(strategy RetryStrategy, delay time.Duration, attempt int, statusCode int) {
	switch strategy {
	case SmartRetry:
		slog.Warn("Upstream rate limited, retrying",
			"status", statusCode, "delay", delay, "attempt", attempt+1, "max_retries", t.maxRetries)
	case ConservativeRetry:
		slog.Warn("Upstream server error, retrying",
			"status", statusCode, "delay", delay, "attempt", attempt+1)
	}
}

// drain discards the rest of a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ http.RoundTripper = (*Transport)(nil)
