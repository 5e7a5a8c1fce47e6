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

// Package model defines the LLM interface used by the chat service.
//
// Providers live in subpackages (see model/gemini). The interface is
// single-shot: one prompt in, one text completion out.
package model

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// LLM is the interface all model providers implement.
//
// Implementations must be safe for concurrent use.
type LLM interface {
	// Name returns the model identifier (e.g. "gemini-2.0-flash").
	Name() string

	// Generate produces a completion for the request.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources.
	Close() error
}

// Request is a single generation request.
type Request struct {
	// Prompt is the user-turn text sent to the model.
	Prompt string

	// SystemInstruction is optional and sent separately from the prompt.
	SystemInstruction string

	// Config overrides the provider's generation defaults. Nil fields keep
	// the provider default.
	Config *GenerateConfig
}

// GenerateConfig contains generation parameters.
type GenerateConfig struct {
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxOutputTokens *int
}

// Clone returns a copy of the config. Pointer fields are copied by value.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}
	clone := &GenerateConfig{}
	if c.Temperature != nil {
		v := *c.Temperature
		clone.Temperature = &v
	}
	if c.TopP != nil {
		v := *c.TopP
		clone.TopP = &v
	}
	if c.TopK != nil {
		v := *c.TopK
		clone.TopK = &v
	}
	if c.MaxOutputTokens != nil {
		v := *c.MaxOutputTokens
		clone.MaxOutputTokens = &v
	}
	return clone
}

// Response is the result of a generation call.
type Response struct {
	// Text is the concatenated text of the first candidate.
	Text string

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason

	// Usage statistics, nil when the provider does not report them.
	Usage *Usage
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop    FinishReason = "stop"
	FinishReasonLength  FinishReason = "length"
	FinishReasonContent FinishReason = "content_filter"
	FinishReasonError   FinishReason = "error"
)
