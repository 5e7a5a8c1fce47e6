package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kadirpekel/notely/pkg/model"
	"github.com/kadirpekel/notely/pkg/observability"
)

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeLLM) Name() string { return "fake-model" }

func (f *fakeLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{
		Text:         f.reply,
		FinishReason: model.FinishReasonStop,
		Usage:        &model.Usage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
	}, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func TestNewService_RequiresModel(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestReply(t *testing.T) {
	llm := &fakeLLM{reply: "# Groceries\n* **milk**"}
	svc, err := NewService(llm)
	require.NoError(t, err)

	resp, err := svc.Reply(context.Background(), Request{
		Message: "What should I buy?",
		Notes:   "Note Title: Groceries\nContent: milk",
	})
	require.NoError(t, err)
	assert.Equal(t, "# Groceries\n* **milk**", resp.Response)

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "User's question: What should I buy?")
	assert.Contains(t, prompt, "User's notes:\nNote Title: Groceries\nContent: milk\n")
	assert.Contains(t, prompt, "- Use markdown formatting for better readability")
	assert.Equal(t, "fake-model", svc.Model())
}

func TestReply_MessageRequired(t *testing.T) {
	llm := &fakeLLM{reply: "ignored"}
	svc, err := NewService(llm)
	require.NoError(t, err)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := svc.Reply(context.Background(), Request{Message: msg})
		assert.ErrorIs(t, err, ErrMessageRequired)
	}
	assert.Empty(t, llm.prompts, "model must not be called")
}

func TestReply_ModelError(t *testing.T) {
	upstream := errors.New("quota exhausted")
	svc, err := NewService(&fakeLLM{err: upstream})
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), Request{Message: "hi"})
	require.Error(t, err)

	var modelErr *ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "fake-model", modelErr.Model)
	assert.Equal(t, "quota exhausted", modelErr.Details())
	assert.ErrorIs(t, err, upstream)
	assert.True(t, IsModelError(err))
	assert.False(t, IsModelError(ErrMessageRequired))
}

func TestPing(t *testing.T) {
	llm := &fakeLLM{reply: "I am a large language model."}
	svc, err := NewService(llm)
	require.NoError(t, err)

	text, err := svc.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I am a large language model.", text)
	assert.Equal(t, PingPrompt, llm.lastPrompt())
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Summarize", "")
	assert.True(t, strings.HasPrefix(prompt, "\nYou are a helpful AI assistant for a note-taking app."))
	assert.True(t, strings.HasSuffix(prompt, "User's notes:\nNo notes available\n"))
	assert.Contains(t, prompt, "- Use `code` formatting for any technical terms or code references")

	// Template syntax in user input is not interpreted.
	prompt = BuildPrompt("{{.Notes}}", "   ")
	assert.Contains(t, prompt, "User's question: {{.Notes}}")
	assert.Contains(t, prompt, NoNotesPlaceholder)
}

func TestNotes_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"string", `{"message":"q","notes":"plain text"}`, "plain text"},
		{"missing", `{"message":"q"}`, ""},
		{"null", `{"message":"q","notes":null}`, ""},
		{"object", `{"message":"q","notes":{"currentNote":"Note Title: A\nContent: a"}}`, "Note Title: A\nContent: a"},
		{"object keys sorted", `{"message":"q","notes":{"b":"second","a":"first"}}`, "first\n\nsecond"},
		{"array", `{"message":"q","notes":["one","",{"x":"two"}]}`, "one\n\ntwo"},
		{"number", `{"message":"q","notes":42}`, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.input), &req))
			assert.Equal(t, "q", req.Message)
			assert.Equal(t, tt.want, req.Notes.String())
		})
	}
}

func TestReply_RecordsMetrics(t *testing.T) {
	metrics, err := observability.InitMetrics(observability.MetricsConfig{Enabled: true, Namespace: observability.DefaultNamespace})
	require.NoError(t, err)
	defer metrics.Shutdown(context.Background())

	svc, err := NewService(&fakeLLM{err: errors.New("boom")}, WithMetrics(metrics))
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), Request{Message: "hi"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	assert.Contains(t, string(body), "notely_llm_errors_total")
	assert.Contains(t, string(body), `model="fake-model"`)
}

func TestReply_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	svc, err := NewService(&fakeLLM{reply: "ok"}, WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	names := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		names[s.Name()] = s
	}
	require.Contains(t, names, observability.SpanChatReply)
	require.Contains(t, names, observability.SpanLLMRequest)

	llmSpan := names[observability.SpanLLMRequest]
	assert.Equal(t, names[observability.SpanChatReply].SpanContext().SpanID(), llmSpan.Parent().SpanID())

	attrs := map[string]any{}
	for _, kv := range llmSpan.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "fake-model", attrs[observability.AttrLLMModel])
	assert.Equal(t, int64(10), attrs[observability.AttrLLMTokensIn])
}
