// Package ratelimit implements per-caller admission control with a fixed
// request budget per time window.
//
// Each caller identity owns a Window. The first request of a window starts
// it with count 1; every later request increments the count and is rejected
// once the count exceeds Config.Max. A window resets when the current time is
// past Start+Config.Window.
package ratelimit

import (
	"time"
)

// Defaults for the admission budget.
const (
	// DefaultWindow is the length of one rate-limit window.
	DefaultWindow = 15 * time.Minute

	// DefaultMax is the number of requests admitted per window.
	DefaultMax = 100
)

// Config holds the fixed window parameters.
type Config struct {
	// Window is the window duration.
	Window time.Duration

	// Max is the number of requests admitted per identity per window.
	Max int
}

// DefaultConfig returns the default budget (100 requests per 15 minutes).
func DefaultConfig() Config {
	return Config{
		Window: DefaultWindow,
		Max:    DefaultMax,
	}
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Max <= 0 {
		c.Max = DefaultMax
	}
	return c
}

// State is the admission state of one identity.
type State int

const (
	// Open admits requests (count < Max).
	Open State = iota

	// Limited rejects requests until the window resets (count >= Max).
	Limited
)

// String returns the log label of the state.
func (s State) String() string {
	if s == Limited {
		return "limited"
	}
	return "open"
}

// Window is the request count of one identity in its current window.
type Window struct {
	// Count of requests seen in the window, saturated at Max+1.
	Count int `json:"count"`

	// Start of the window.
	Start time.Time `json:"start"`
}

// Expired reports whether the window period has elapsed at now.
func (w *Window) Expired(now time.Time, window time.Duration) bool {
	return now.After(w.Start.Add(window))
}

// ResetAt returns when the window ends.
func (w *Window) ResetAt(window time.Duration) time.Time {
	return w.Start.Add(window)
}

// State returns the admission state at now. An expired window is Open.
func (w *Window) State(now time.Time, cfg Config) State {
	cfg = cfg.withDefaults()
	if w.Expired(now, cfg.Window) || w.Count < cfg.Max {
		return Open
	}
	return Limited
}

// hit records one request at now and reports whether it is admitted.
func (w *Window) hit(now time.Time, cfg Config) bool {
	if w.Start.IsZero() || w.Expired(now, cfg.Window) {
		w.Start = now
		w.Count = 1
		return true
	}
	if w.Count <= cfg.Max {
		w.Count++
	}
	return w.Count <= cfg.Max
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request is admitted.
	Allowed bool

	// Limit is the per-window budget.
	Limit int

	// Remaining is the number of requests still admitted in the window.
	Remaining int

	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// RetryAfter returns the time until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Err returns ErrLimitExceeded for a rejected request and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrLimitExceeded
}

func decide(count int, cfg Config, resetAt time.Time) Decision {
	remaining := cfg.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= cfg.Max,
		Limit:     cfg.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
