package ratelimit

import (
	"time"
)

// Window identifies one of the two fixed counting windows.
type Window string

const (
	WindowMinute Window = "minute"
	WindowDay    Window = "day"
)

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowMinute:
		return time.Minute
	case WindowDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Default policy values.
const (
	DefaultRequestsPerMinute = 5
	DefaultRequestsPerDay    = 20
	DefaultSweepInterval     = time.Minute
)

// Config is the policy of a Limiter. It is fixed for the lifetime of the instance.
type Config struct {
	// RequestsPerMinute caps requests in the minute window.
	// Default: 5
	RequestsPerMinute int64 `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty"`

	// RequestsPerDay caps requests in the day window.
	// Default: 20
	RequestsPerDay int64 `yaml:"requests_per_day,omitempty" json:"requests_per_day,omitempty"`

	// SweepInterval is how often expired records are garbage collected.
	// Default: 1m
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty" json:"sweep_interval,omitempty"`
}

// SetDefaults fills zero values with the documented defaults.
// Negative values are left alone so Validate can reject them.
func (c *Config) SetDefaults() {
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.RequestsPerDay == 0 {
		c.RequestsPerDay = DefaultRequestsPerDay
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// Validate checks the policy. Caps and the sweep interval must be positive.
func (c *Config) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return NewValidationError("requests_per_minute", "must be positive")
	}
	if c.RequestsPerDay <= 0 {
		return NewValidationError("requests_per_day", "must be positive")
	}
	if c.SweepInterval <= 0 {
		return NewValidationError("sweep_interval", "must be positive")
	}
	return nil
}

// Limit returns the cap configured for a window.
func (c *Config) Limit(w Window) int64 {
	switch w {
	case WindowMinute:
		return c.RequestsPerMinute
	case WindowDay:
		return c.RequestsPerDay
	default:
		return 0
	}
}

// Result is the verdict for a single request.
type Result struct {
	// Success is true when the request is allowed under both windows.
	Success bool `json:"success"`

	// Limit is the cap of the more restrictive window.
	Limit int64 `json:"limit"`

	// Remaining is the smaller of the two windows' remaining quota,
	// after this request's outcome has been applied.
	Remaining int64 `json:"remaining"`

	// ResetAt is when the more restrictive window resets.
	ResetAt time.Time `json:"resetAt"`

	// Window names the window reported by Limit and ResetAt.
	Window Window `json:"window"`

	// RetryAfter is set on denial: how long until every exceeded window has reset.
	RetryAfter time.Duration `json:"-"`

	// Exceeded is set on denial to the exceeded window that resets last,
	// i.e. the one RetryAfter waits for. It can differ from Window when both
	// windows are exhausted.
	Exceeded Window `json:"-"`
}

// IsExceeded returns true if the request was denied.
func (r *Result) IsExceeded() bool {
	return !r.Success
}

// counter is the per-identifier state of one window.
type counter struct {
	hits    int64
	resetAt time.Time
}

// expired reports whether the window is over at now.
func (c *counter) expired(now time.Time) bool {
	return !now.Before(c.resetAt)
}

// remaining clamps the unused quota of a window at zero.
func remaining(limit, hits int64) int64 {
	if hits >= limit {
		return 0
	}
	return limit - hits
}
