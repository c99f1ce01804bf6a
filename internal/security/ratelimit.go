package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a client exceeds its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures a RateLimiter.
type RateLimitConfig struct {
	// Limit is the number of events allowed per Window and key. Zero
	// disables limiting.
	Limit int `yaml:"limit"`

	// Window defaults to one minute.
	Window time.Duration `yaml:"window"`
}

// RateLimiter is a sliding-window limiter keyed by client (remote address
// or session ID). A nil *RateLimiter allows everything.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter, or returns nil when cfg.Limit is zero.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Limit <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{
		limit:   cfg.Limit,
		window:  cfg.Window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records one event for key, or returns ErrRateLimited when the key
// already used its budget inside the window.
func (rl *RateLimiter) Allow(key string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	events := evict(rl.buckets[key], now.Add(-rl.window))
	if len(events) >= rl.limit {
		rl.buckets[key] = events
		return ErrRateLimited
	}
	rl.buckets[key] = append(events, now)
	return nil
}

// Prune drops keys with no event inside the window and returns how many
// keys remain.
func (rl *RateLimiter) Prune() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for k, events := range rl.buckets {
		if events = evict(events, cutoff); len(events) == 0 {
			delete(rl.buckets, k)
		} else {
			rl.buckets[k] = events
		}
	}
	return len(rl.buckets)
}

// evict drops events at or before cutoff. Events are in time order.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}
