package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kadirpekel/notely/pkg/model"
)

type capturedRequest struct {
	Path   string
	APIKey string
	Body   map[string]any
}

// newMockServer answers generateContent calls with the given status and body.
func newMockServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, chan capturedRequest) {
	t.Helper()

	var calls atomic.Int32
	captured := make(chan capturedRequest, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		select {
		case captured <- capturedRequest{Path: r.URL.Path, APIKey: r.Header.Get("x-goog-api-key"), Body: payload}:
		default:
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, &calls, captured
}

const okBody = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "# Summary\n"}, {"text": "* **Buy milk**"}]},
    "finishReason": "STOP"
  }],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 7, "totalTokenCount": 19}
}`

func newTestModel(t *testing.T, baseURL string, mutate func(*Config)) model.LLM {
	t.Helper()

	temp, topK := 0.4, 32
	cfg := Config{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		Temperature:     &temp,
		TopK:            &topK,
		MaxOutputTokens: 1024,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	llm, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = llm.Close() })
	return llm
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNew_DefaultModel(t *testing.T) {
	llm, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, llm.Name())
}

func TestGenerate(t *testing.T) {
	server, calls, captured := newMockServer(t, http.StatusOK, okBody)
	llm := newTestModel(t, server.URL, nil)

	resp, err := llm.Generate(context.Background(), &model.Request{Prompt: "Summarize my notes"})
	require.NoError(t, err)

	assert.Equal(t, "# Summary\n* **Buy milk**", resp.Text)
	assert.Equal(t, model.FinishReasonStop, resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
	assert.Equal(t, int32(1), calls.Load())

	req := <-captured
	assert.True(t, strings.HasSuffix(req.Path, "models/gemini-2.0-flash:generateContent"), req.Path)
	assert.Equal(t, "test-key", req.APIKey)

	contents, ok := req.Body["contents"].([]any)
	require.True(t, ok, "contents missing from request body")
	require.Len(t, contents, 1)
	encoded, _ := json.Marshal(contents[0])
	assert.Contains(t, string(encoded), "Summarize my notes")

	genCfg, ok := req.Body["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig missing from request body")
	assert.InDelta(t, 0.4, genCfg["temperature"], 0.001)
	assert.InDelta(t, 32, genCfg["topK"], 0.001)
	assert.InDelta(t, 1024, genCfg["maxOutputTokens"], 0.001)
}

func TestGenerate_RequestOverrides(t *testing.T) {
	server, _, captured := newMockServer(t, http.StatusOK, okBody)
	llm := newTestModel(t, server.URL, nil)

	temp, maxTokens := 1.5, 64
	_, err := llm.Generate(context.Background(), &model.Request{
		Prompt:            "hi",
		SystemInstruction: "be brief",
		Config:            &model.GenerateConfig{Temperature: &temp, MaxOutputTokens: &maxTokens},
	})
	require.NoError(t, err)

	req := <-captured
	genCfg := req.Body["generationConfig"].(map[string]any)
	assert.InDelta(t, 1.5, genCfg["temperature"], 0.001)
	assert.InDelta(t, 64, genCfg["maxOutputTokens"], 0.001)
	assert.InDelta(t, 32, genCfg["topK"], 0.001, "unset overrides keep the model default")

	encoded, _ := json.Marshal(req.Body["systemInstruction"])
	assert.Contains(t, string(encoded), "be brief")
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	server, calls, _ := newMockServer(t, http.StatusOK, okBody)
	llm := newTestModel(t, server.URL, nil)

	_, err := llm.Generate(context.Background(), &model.Request{Prompt: "  "})
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGenerate_APIError(t *testing.T) {
	server, _, _ := newMockServer(t, http.StatusBadRequest,
		`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`)
	llm := newTestModel(t, server.URL, nil)

	_, err := llm.Generate(context.Background(), &model.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")

	var apiErr genai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
}

func TestGenerate_EmptyResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no candidates", `{"candidates": []}`},
		{"blocked", `{"candidates": [{"finishReason": "SAFETY"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, _ := newMockServer(t, http.StatusOK, tt.body)
			llm := newTestModel(t, server.URL, nil)

			_, err := llm.Generate(context.Background(), &model.Request{Prompt: "hi"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrEmptyResponse))
		})
	}
}

func TestGenerate_OutboundRateLimit(t *testing.T) {
	server, calls, _ := newMockServer(t, http.StatusOK, okBody)
	llm := newTestModel(t, server.URL, func(c *Config) {
		c.MaxQPS = 0.01
		c.Burst = 1
	})

	_, err := llm.Generate(context.Background(), &model.Request{Prompt: "first"})
	require.NoError(t, err)

	// The next token is 100s away, well past the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = llm.Generate(ctx, &model.Request{Prompt: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbound rate limit")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_RetriesThrottledRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Resource exhausted", "status": "RESOURCE_EXHAUSTED"}}`))
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(server.Close)

	llm := newTestModel(t, server.URL, func(c *Config) { c.MaxRetries = 1 })

	resp, err := llm.Generate(context.Background(), &model.Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n* **Buy milk**", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_NoRetriesByDefault(t *testing.T) {
	server, calls, _ := newMockServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "Resource exhausted", "status": "RESOURCE_EXHAUSTED"}}`)
	llm := newTestModel(t, server.URL, nil)

	_, err := llm.Generate(context.Background(), &model.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	llm := newTestModel(t, server.URL, func(c *Config) { c.Timeout = 50 * time.Millisecond })

	_, err := llm.Generate(context.Background(), &model.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		in   genai.FinishReason
		want model.FinishReason
	}{
		{genai.FinishReasonStop, model.FinishReasonStop},
		{"", model.FinishReasonStop},
		{genai.FinishReasonMaxTokens, model.FinishReasonLength},
		{genai.FinishReasonSafety, model.FinishReasonContent},
		{genai.FinishReasonSPII, model.FinishReasonContent},
		{genai.FinishReasonMalformedFunctionCall, model.FinishReasonError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mapFinishReason(tt.in), string(tt.in))
	}
}
