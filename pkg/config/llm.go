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

package config

import (
	"fmt"
	"os"
	"time"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
)

// GeminiAPIKeyEnv is the environment variable holding the Gemini API key.
const GeminiAPIKeyEnv = "GEMINI_API_KEY"

// LLM defaults. The generation values are tuned for short, note-focused answers.
const (
	DefaultLLMModel        = "gemini-2.0-flash"
	DefaultTemperature     = 0.4
	DefaultTopK            = 32
	DefaultTopP            = 0.95
	DefaultMaxOutputTokens = 1024
	DefaultLLMTimeout      = 30 * time.Second
	DefaultMaxQPS          = 2.0
	DefaultBurst           = 4
	DefaultMaxRetries      = 2
)

// LLMConfig configures the model provider.
type LLMConfig struct {
	// Provider type. Only gemini is supported.
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=gemini,default=gemini"`

	// Model name.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=gemini-2.0-flash"`

	// APIKey for authentication. Supports ${VAR} expansion and falls back
	// to GEMINI_API_KEY.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${GEMINI_API_KEY})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	// Temperature for generation (0.0 - 2.0).
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,minimum=0,maximum=2,default=0.4"`

	// TopK sampling.
	TopK *int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,minimum=1,default=32"`

	// TopP nucleus sampling (0.0 - 1.0).
	TopP *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty" jsonschema:"title=Top P,minimum=0,maximum=1,default=0.95"`

	// MaxOutputTokens limits response length.
	MaxOutputTokens int `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty" jsonschema:"title=Max Output Tokens,minimum=1,default=1024"`

	// Timeout bounds a single model request.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,type=string,default=30s"`

	// MaxQPS caps outbound model requests per second for the whole process.
	MaxQPS float64 `yaml:"max_qps,omitempty" json:"max_qps,omitempty" jsonschema:"title=Max QPS,minimum=0,default=2"`

	// Burst is the number of model requests allowed above MaxQPS at once.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty" jsonschema:"title=Burst,minimum=1,default=4"`

	// MaxRetries is how often a throttled (429/503) or failing upstream
	// request is retried. Set 0 to disable retries.
	MaxRetries *int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,minimum=0,default=2"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderGemini
	}
	if c.Model == "" {
		c.Model = DefaultLLMModel
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(GeminiAPIKeyEnv)
	}
	if c.Temperature == nil {
		temp := DefaultTemperature
		c.Temperature = &temp
	}
	if c.TopK == nil {
		topK := DefaultTopK
		c.TopK = &topK
	}
	if c.TopP == nil {
		topP := DefaultTopP
		c.TopP = &topP
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultLLMTimeout
	}
	if c.MaxQPS == 0 {
		c.MaxQPS = DefaultMaxQPS
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
	if c.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.MaxRetries = &retries
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.Provider != LLMProviderGemini {
		return fmt.Errorf("invalid provider %q (valid: gemini)", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set %s)", GeminiAPIKeyEnv)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1) {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if c.TopK != nil && *c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.MaxOutputTokens < 1 {
		return fmt.Errorf("max_output_tokens must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxQPS < 0 {
		return fmt.Errorf("max_qps must not be negative")
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be positive")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}
