package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/notely/pkg/ratelimit"
)

// Metrics holds the service instruments. A nil or disabled Metrics is safe
// to use; every Record method becomes a no-op.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	decisions metric.Int64Counter
	swept     metric.Int64Counter

	llmDuration metric.Float64Histogram
	llmErrors   metric.Int64Counter

	httpDuration metric.Float64Histogram
}

var _ ratelimit.Recorder = (*Metrics)(nil)

// RecordDecision counts a limiter verdict.
func (m *Metrics) RecordDecision(result *ratelimit.Result) {
	if m == nil || m.decisions == nil || result == nil {
		return
	}

	outcome, window := "allowed", result.Window
	if result.IsExceeded() {
		outcome = "denied"
		if result.Exceeded != "" {
			window = result.Exceeded
		}
	}

	m.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("result", outcome),
		attribute.String("window", string(window)),
	))
}

// RecordSweep counts records removed by a sweep pass.
func (m *Metrics) RecordSweep(removed int) {
	if m == nil || m.swept == nil || removed <= 0 {
		return
	}
	m.swept.Add(context.Background(), int64(removed))
}

// RecordLLMCall records the duration and outcome of a model request.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("model", model))

	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil && m.llmErrors != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

// RecordHTTPRequest records a served request under its route pattern.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	))
}
