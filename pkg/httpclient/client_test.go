package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedServer answers with the given statuses in order, then 200.
func scriptedServer(t *testing.T, statuses []int, headers http.Header) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		body, _ := io.ReadAll(r.Body)

		if n < len(statuses) {
			for k, v := range headers {
				w.Header()[k] = v
			}
			w.WriteHeader(statuses[n])
			_, _ = w.Write([]byte("throttled"))
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// recordingSleep records requested delays without waiting.
func recordingSleep(delays *[]time.Duration) Option {
	return func(t *Transport) {
		t.sleep = func(ctx context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return ctx.Err()
		}
	}
}

func post(t *testing.T, client *http.Client, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestNewTransport_Defaults(t *testing.T) {
	tr := NewTransport()
	if tr.maxRetries != DefaultMaxRetries {
		t.Errorf("Expected maxRetries=%d, got %d", DefaultMaxRetries, tr.maxRetries)
	}
	if tr.baseDelay != DefaultBaseDelay {
		t.Errorf("Expected baseDelay=%v, got %v", DefaultBaseDelay, tr.baseDelay)
	}
	if tr.base != http.DefaultTransport {
		t.Error("Expected http.DefaultTransport as base")
	}

	tr = NewTransport(WithMaxRetries(-1), WithBase(nil), WithRetryStrategy(nil))
	if tr.maxRetries != DefaultMaxRetries || tr.base == nil || tr.strategyFunc == nil {
		t.Error("Invalid options must keep defaults")
	}
}

func TestRoundTrip_RetriesThrottledRequest(t *testing.T) {
	server, calls := scriptedServer(t, []int{http.StatusTooManyRequests}, http.Header{"Retry-After": {"2"}})

	var delays []time.Duration
	client := NewClient(recordingSleep(&delays))

	resp, body := post(t, client, server.URL, `{"prompt":"hi"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body != `{"prompt":"hi"}` {
		t.Errorf("Body was not replayed on retry, got %q", body)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Errorf("Expected a single 2s wait from Retry-After, got %v", delays)
	}
}

func TestRoundTrip_GivesUpAfterMaxRetries(t *testing.T) {
	statuses := []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable}
	server, calls := scriptedServer(t, statuses, nil)

	var delays []time.Duration
	client := NewClient(WithMaxRetries(2), WithBaseDelay(100*time.Millisecond), recordingSleep(&delays))

	resp, _ := post(t, client, server.URL, "{}")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected the last 503 to be returned, got %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}

	// Exponential backoff with 10% jitter
	want := []time.Duration{110 * time.Millisecond, 220 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("Wait %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestRoundTrip_NoRetryStatuses(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		server, calls := scriptedServer(t, []int{status}, nil)

		var delays []time.Duration
		resp, _ := post(t, NewClient(recordingSleep(&delays)), server.URL, "{}")

		if resp.StatusCode != status {
			t.Errorf("Expected %d, got %d", status, resp.StatusCode)
		}
		if calls.Load() != 1 || len(delays) != 0 {
			t.Errorf("Status %d must not be retried (calls=%d)", status, calls.Load())
		}
	}
}

func TestRoundTrip_ConservativeRetryOnce(t *testing.T) {
	server, calls := scriptedServer(t, []int{http.StatusBadGateway, http.StatusBadGateway}, nil)

	var delays []time.Duration
	resp, _ := post(t, NewClient(WithMaxRetries(5), recordingSleep(&delays)), server.URL, "{}")

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502 after the single quick retry, got %d", resp.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestRoundTrip_DelayAboveMaxReturnsImmediately(t *testing.T) {
	server, calls := scriptedServer(t, []int{http.StatusTooManyRequests}, http.Header{"Retry-After": {"3600"}})

	var delays []time.Duration
	resp, _ := post(t, NewClient(WithMaxDelay(10*time.Second), recordingSleep(&delays)), server.URL, "{}")

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 || len(delays) != 0 {
		t.Errorf("An hour-long wait must not be attempted (calls=%d, delays=%v)", calls.Load(), delays)
	}
}

func TestRoundTrip_ContextCancelledDuringWait(t *testing.T) {
	server, calls := scriptedServer(t, []int{http.StatusTooManyRequests}, http.Header{"Retry-After": {"5"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	tr := NewTransport()
	tr.sleep = func(context.Context, time.Duration) error { return ctx.Err() }

	_, err := tr.RoundTrip(req)
	if err == nil {
		t.Fatal("Expected an error")
	}

	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("Expected *RetryableError, got %T", err)
	}
	if retryErr.StatusCode != http.StatusTooManyRequests || retryErr.RetryAfter != 5*time.Second {
		t.Errorf("Unexpected error fields: %+v", retryErr)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("Expected the error to wrap context.Canceled")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestDefaultRetryStrategy(t *testing.T) {
	tests := map[int]RetryStrategy{
		http.StatusTooManyRequests:     SmartRetry,
		http.StatusServiceUnavailable:  SmartRetry,
		http.StatusInternalServerError: ConservativeRetry,
		http.StatusGatewayTimeout:      ConservativeRetry,
		http.StatusBadRequest:          NoRetry,
		http.StatusOK:                  NoRetry,
	}
	for status, want := range tests {
		if got := DefaultRetryStrategy(status); got != want {
			t.Errorf("DefaultRetryStrategy(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestParseRetryHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	h.Set("X-RateLimit-Reset", "1751371260")

	info := ParseRetryHeaders(h)
	if info.RetryAfter != 30*time.Second {
		t.Errorf("Expected 30s, got %v", info.RetryAfter)
	}
	if info.ResetTime != 1751371260 {
		t.Errorf("Expected reset 1751371260, got %d", info.ResetTime)
	}

	h = http.Header{}
	h.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
	info = ParseRetryHeaders(h)
	if info.RetryAfter <= 0 || info.RetryAfter > time.Minute {
		t.Errorf("Expected an HTTP-date Retry-After within a minute, got %v", info.RetryAfter)
	}

	h = http.Header{}
	h.Set("Retry-After", "soon")
	h.Set("X-RateLimit-Reset", "-5")
	if info := ParseRetryHeaders(h); info != (RateLimitInfo{}) {
		t.Errorf("Expected empty info for garbage headers, got %+v", info)
	}
}

func TestRetryableError(t *testing.T) {
	err := &RetryableError{StatusCode: 429, Message: "retry aborted", RetryAfter: time.Second, Err: context.Canceled}
	if err.Error() != "HTTP 429: retry aborted (retry after 1s)" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	err = &RetryableError{StatusCode: 503, Message: "down"}
	if err.Error() != "HTTP 503: down" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
