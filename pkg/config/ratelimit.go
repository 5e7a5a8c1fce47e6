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

package config

import (
	"time"

	"github.com/kadirpekel/notely/pkg/ratelimit"
)

// RateLimitConfig defines the per-client request limits of the chat API.
//
// Example:
//
//	rate_limit:
//	  requests_per_minute: 5
//	  requests_per_day: 20
//	  sweep_interval: 1m
type RateLimitConfig struct {
	// RequestsPerMinute caps requests per client in a fixed 60 second window.
	RequestsPerMinute int64 `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty" jsonschema:"title=Requests Per Minute,minimum=1,default=5"`

	// RequestsPerDay caps requests per client in a fixed 24 hour window.
	RequestsPerDay int64 `yaml:"requests_per_day,omitempty" json:"requests_per_day,omitempty" jsonschema:"title=Requests Per Day,minimum=1,default=20"`

	// SweepInterval is how often expired counters are dropped.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty" json:"sweep_interval,omitempty" jsonschema:"title=Sweep Interval,type=string,default=1m"`
}

// SetDefaults sets default values for RateLimitConfig.
func (c *RateLimitConfig) SetDefaults() {
	limiter := c.Limiter()
	limiter.SetDefaults()

	c.RequestsPerMinute = limiter.RequestsPerMinute
	c.RequestsPerDay = limiter.RequestsPerDay
	c.SweepInterval = limiter.SweepInterval
}

// Validate validates the RateLimitConfig.
func (c *RateLimitConfig) Validate() error {
	limiter := c.Limiter()
	return limiter.Validate()
}

// Limiter converts the section into the limiter policy.
func (c *RateLimitConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerMinute: c.RequestsPerMinute,
		RequestsPerDay:    c.RequestsPerDay,
		SweepInterval:     c.SweepInterval,
	}
}
