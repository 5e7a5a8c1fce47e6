package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Limiter is the dual-window request limiter.
//
// A single mutex guards both window stores so that the read-check-increment
// sequence of Check is atomic across windows and across concurrent callers.
type Limiter struct {
	config   Config
	now      func() time.Time
	recorder Recorder

	mu     sync.Mutex
	minute *windowStore
	day    *windowStore

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. Tests use it to move time without sleeping.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRecorder reports decisions and sweeps to r.
func WithRecorder(r Recorder) Option {
	return func(l *Limiter) {
		if r != nil {
			l.recorder = r
		}
	}
}

// New creates a limiter and starts its background sweep.
// Zero config fields take their defaults; Close must be called to stop the sweep.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	l := &Limiter{
		config:   cfg,
		now:      time.Now,
		recorder: noopRecorder{},
		minute:   newWindowStore(WindowMinute),
		day:      newWindowStore(WindowDay),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.sweepLoop()

	return l, nil
}

// Config returns the policy of this limiter.
func (l *Limiter) Config() Config {
	return l.config
}

// Check decides whether one request from identifier may proceed and counts it
// in both windows when it does. Denied requests are not counted.
func (l *Limiter) Check(identifier string) (*Result, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: identifier cannot be empty", ErrInvalidIdentifier)
	}

	// Both windows are evaluated against the same instant.
	now := l.now()

	l.mu.Lock()
	minute := l.minute.current(identifier, now)
	day := l.day.current(identifier, now)

	overMinute := minute.hits >= l.config.RequestsPerMinute
	overDay := day.hits >= l.config.RequestsPerDay
	allowed := !overMinute && !overDay

	if allowed {
		minute.hits++
		day.hits++
	}

	m, d := *minute, *day
	l.mu.Unlock()

	result := l.report(allowed, m, d)
	if !allowed {
		result.Exceeded, result.RetryAfter = binding(now, overMinute, m, overDay, d)
		slog.Debug("Rate limit exceeded",
			"identifier", identifier,
			"window", result.Exceeded,
			"limit", result.Limit,
			"reset_at", result.ResetAt)
	}

	l.recorder.RecordDecision(result)

	return result, nil
}

// Peek reports the quota identifier would see on its next request without
// counting anything. Success tells whether that request would be allowed.
func (l *Limiter) Peek(identifier string) (*Result, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: identifier cannot be empty", ErrInvalidIdentifier)
	}

	now := l.now()

	l.mu.Lock()
	minute := l.minute.peek(identifier, now)
	day := l.day.peek(identifier, now)
	l.mu.Unlock()

	allowed := minute.hits < l.config.RequestsPerMinute && day.hits < l.config.RequestsPerDay
	return l.report(allowed, minute, day), nil
}

// Reset forgets both windows for identifier.
func (l *Limiter) Reset(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("%w: identifier cannot be empty", ErrInvalidIdentifier)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.minute.delete(identifier)
	l.day.delete(identifier)
	return nil
}

// Sweep deletes every record whose window ended before now and returns the
// number of records removed from both stores.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	removed := l.minute.sweep(now) + l.day.sweep(now)
	l.mu.Unlock()

	l.recorder.RecordSweep(removed)
	return removed
}

// Len returns the number of records held per window.
func (l *Limiter) Len() (minute, day int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minute.len(), l.day.len()
}

// Close stops the background sweep and waits for it to exit. It is safe to
// call more than once. Counters stay readable after Close.
func (l *Limiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stop)
	})
	<-l.done
	return nil
}

func (l *Limiter) sweepLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if removed := l.Sweep(l.now()); removed > 0 {
				slog.Debug("Swept expired rate limit records", "removed", removed)
			}
		}
	}
}

// report builds the result for the more restrictive window. The minute window
// wins ties.
func (l *Limiter) report(allowed bool, minute, day counter) *Result {
	minuteRemaining := remaining(l.config.RequestsPerMinute, minute.hits)
	dayRemaining := remaining(l.config.RequestsPerDay, day.hits)

	result := &Result{
		Success:   allowed,
		Remaining: min(minuteRemaining, dayRemaining),
	}

	if minuteRemaining <= dayRemaining {
		result.Window = WindowMinute
		result.ResetAt = minute.resetAt
	} else {
		result.Window = WindowDay
		result.ResetAt = day.resetAt
	}
	result.Limit = l.config.Limit(result.Window)

	return result
}

// binding returns the exceeded window that resets last and the wait until it does.
func binding(now time.Time, overMinute bool, minute counter, overDay bool, day counter) (Window, time.Duration) {
	var (
		window Window
		until  time.Time
	)
	if overMinute {
		window, until = WindowMinute, minute.resetAt
	}
	if overDay && day.resetAt.After(until) {
		window, until = WindowDay, day.resetAt
	}
	if d := until.Sub(now); d > 0 {
		return window, d
	}
	return window, 0
}
