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

// Package gemini implements the model.LLM interface for Google Gemini models
// using the official google.golang.org/genai SDK.
//
// Outbound calls pass through a process-wide token bucket so a burst of
// allowed chat requests cannot exceed the provider quota.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/kadirpekel/notely/pkg/httpclient"
	"github.com/kadirpekel/notely/pkg/model"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Config contains configuration for the Gemini model.
type Config struct {
	// APIKey is the Google AI API key.
	APIKey string

	// Model is the model name (e.g., "gemini-2.0-flash", "gemini-1.5-pro").
	Model string

	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string

	// Generation defaults, applied when a request does not override them.
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxOutputTokens int

	// Timeout bounds each Generate call. Zero means no extra deadline.
	Timeout time.Duration

	// MaxQPS caps outbound requests per second. Zero disables the cap.
	MaxQPS float64

	// Burst is the token bucket size. Values below 1 are treated as 1.
	Burst int

	// MaxRetries is how often a throttled or failing upstream response is
	// retried, honouring Retry-After. Ignored when HTTPClient is set.
	MaxRetries int

	// HTTPClient replaces the retrying client built from MaxRetries.
	HTTPClient *http.Client
}

// geminiModel implements model.LLM for Gemini.
type geminiModel struct {
	client  *genai.Client
	name    string
	config  Config
	limiter *rate.Limiter
}

// New creates a new Gemini model instance.
func New(cfg Config) (model.LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.NewClient(httpclient.WithMaxRetries(cfg.MaxRetries))
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiModel{
		client:  client,
		name:    cfg.Model,
		config:  cfg,
		limiter: newLimiter(cfg.MaxQPS, cfg.Burst),
	}, nil
}

func newLimiter(qps float64, burst int) *rate.Limiter {
	if qps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

// Name returns the model identifier.
func (m *geminiModel) Name() string {
	return m.name
}

// Generate sends a single prompt and returns the first candidate's text.
func (m *geminiModel) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("outbound rate limit: %w", err)
	}

	var systemInstruction *genai.Content
	if req.SystemInstruction != "" {
		systemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	start := time.Now()
	genResp, err := m.client.Models.GenerateContent(ctx, m.name, genai.Text(req.Prompt), m.buildConfig(req.Config, systemInstruction))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	resp, err := parseResponse(genResp)
	if err != nil {
		return nil, err
	}

	slog.Debug("Gemini response received",
		"model", m.name,
		"duration", time.Since(start),
		"finish_reason", resp.FinishReason)

	return resp, nil
}

// Close releases resources. The genai client holds nothing to release.
func (m *geminiModel) Close() error {
	return nil
}

// buildConfig merges request overrides over the model defaults.
func (m *geminiModel) buildConfig(cfg *model.GenerateConfig, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}

	if cfg != nil {
		if cfg.Temperature != nil {
			config.Temperature = genai.Ptr(float32(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			config.TopP = genai.Ptr(float32(*cfg.TopP))
		}
		if cfg.TopK != nil {
			config.TopK = genai.Ptr(float32(*cfg.TopK))
		}
		if cfg.MaxOutputTokens != nil {
			config.MaxOutputTokens = int32(*cfg.MaxOutputTokens)
		}
	}

	if config.Temperature == nil && m.config.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*m.config.Temperature))
	}
	if config.TopP == nil && m.config.TopP != nil {
		config.TopP = genai.Ptr(float32(*m.config.TopP))
	}
	if config.TopK == nil && m.config.TopK != nil {
		config.TopK = genai.Ptr(float32(*m.config.TopK))
	}
	if config.MaxOutputTokens == 0 && m.config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(m.config.MaxOutputTokens)
	}

	return config
}

// parseResponse converts a Gemini response into a model.Response.
func parseResponse(genResp *genai.GenerateContentResponse) (*model.Response, error) {
	if genResp == nil || len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", model.ErrEmptyResponse)
	}

	candidate := genResp.Candidates[0]
	resp := &model.Response{
		FinishReason: mapFinishReason(candidate.FinishReason),
	}

	if candidate.Content != nil {
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			// Thought summaries are not part of the answer.
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		resp.Text = sb.String()
	}

	if resp.Text == "" {
		return nil, fmt.Errorf("%w (finish reason: %s)", model.ErrEmptyResponse, resp.FinishReason)
	}

	if genResp.UsageMetadata != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

// mapFinishReason converts a Gemini finish reason to a model.FinishReason.
func mapFinishReason(reason genai.FinishReason) model.FinishReason {
	switch reason {
	case "", genai.FinishReasonStop, genai.FinishReasonUnspecified:
		return model.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return model.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return model.FinishReasonContent
	default:
		return model.FinishReasonError
	}
}

var _ model.LLM = (*geminiModel)(nil)
