// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chat implements the notes assistant: it validates a user question,
// wraps it with the user's notes in an instruction prompt and asks the model.
//
// Rate limiting happens before a request reaches this package; see
// pkg/ratelimit and pkg/server.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kadirpekel/notely/pkg/model"
	"github.com/kadirpekel/notely/pkg/observability"
)

// PingPrompt is the fixed prompt used to smoke-test the model connection.
const PingPrompt = "Hello, what is your name?"

// ErrMessageRequired is returned when the request carries no question.
var ErrMessageRequired = errors.New("message is required")

// ModelError wraps a failure of the upstream model call.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("AI model error (%s): %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Details returns the upstream error message, suitable for API responses.
func (e *ModelError) Details() string {
	if e.Err == nil {
		return "Unknown model error"
	}
	return e.Err.Error()
}

// IsModelError reports whether err is or wraps a *ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}

// Request is a chat question.
type Request struct {
	Message string `json:"message"`
	Notes   Notes  `json:"notes,omitempty"`
}

// Response is the assistant answer.
type Response struct {
	Response string `json:"response"`
}

// Service answers questions about the user's notes.
type Service struct {
	llm     model.LLM
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records model call latency and failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for reply spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService creates a chat service on top of llm.
func NewService(llm model.LLM, opts ...Option) (*Service, error) {
	if llm == nil {
		return nil, fmt.Errorf("chat: model is required")
	}
	s := &Service{
		llm:    llm,
		tracer: noop.NewTracerProvider().Tracer("notely/chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Model returns the name of the underlying model.
func (s *Service) Model() string {
	return s.llm.Name()
}

// Reply answers req.Message using req.Notes as context.
func (s *Service) Reply(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrMessageRequired
	}

	ctx, span := s.tracer.Start(ctx, observability.SpanChatReply)
	defer span.End()

	text, err := s.generate(ctx, BuildPrompt(req.Message, req.Notes.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &Response{Response: text}, nil
}

// Ping sends PingPrompt and returns the model's answer.
func (s *Service) Ping(ctx context.Context) (string, error) {
	return s.generate(ctx, PingPrompt)
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	name := s.llm.Name()

	ctx, span := s.tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(observability.AttrLLMModel, name)))
	defer span.End()

	start := time.Now()
	resp, err := s.llm.Generate(ctx, &model.Request{Prompt: prompt})
	s.metrics.RecordLLMCall(ctx, name, time.Since(start), err)

	if err != nil {
		slog.Error("Model request failed", "model", name, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &ModelError{Model: name, Err: err}
	}

	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int(observability.AttrLLMTokensIn, resp.Usage.PromptTokens),
			attribute.Int(observability.AttrLLMTokensOut, resp.Usage.CompletionTokens),
		)
	}
	return resp.Text, nil
}
