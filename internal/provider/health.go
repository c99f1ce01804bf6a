package provider

import (
	"sync"
	"time"
)

type healthState int

const (
	stateHealthy healthState = iota
	stateCooldown
	stateDead
)

func (s healthState) String() string {
	switch s {
	case stateHealthy:
		return "healthy"
	case stateCooldown:
		return "cooldown"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthConfig controls how a chain entry backs off after failures.
type HealthConfig struct {
	// InitialBackoff is the cooldown after the first failure. Default 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the doubling backoff. Default 60s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxFailures consecutive failures mark the entry dead until a probe
	// succeeds. Default 5.
	MaxFailures int `yaml:"max_failures"`

	// CheckInterval is how often unavailable entries are probed. Default 10s.
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Second
	}
}

// healthTracker is the availability state machine of one chain entry:
// healthy → cooldown (doubling backoff) → dead after MaxFailures.
// Any success returns it to healthy.
type healthTracker struct {
	cfg      HealthConfig
	onChange func(from, to healthState)

	mu       sync.Mutex
	state    healthState
	failures int
	backoff  time.Duration
	until    time.Time

	// now is injectable for testing.
	now func() time.Time
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	cfg.defaults()
	return &healthTracker{cfg: cfg, now: time.Now}
}

func (h *healthTracker) available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case stateHealthy:
		return true
	case stateCooldown:
		return !h.now().Before(h.until)
	default:
		return false
	}
}

// needsProbe is true for dead entries and for expired cooldowns.
func (h *healthTracker) needsProbe() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateDead || (h.state == stateCooldown && !h.now().Before(h.until))
}

func (h *healthTracker) success() {
	h.transition(func() healthState {
		h.failures = 0
		h.backoff = 0
		return stateHealthy
	})
}

func (h *healthTracker) failure() {
	h.transition(func() healthState {
		h.failures++
		if h.failures >= h.cfg.MaxFailures {
			return stateDead
		}
		h.backoff = min(max(h.backoff*2, h.cfg.InitialBackoff), h.cfg.MaxBackoff)
		h.until = h.now().Add(h.backoff)
		return stateCooldown
	})
}

// transition applies step under the lock and reports state changes
// outside it.
func (h *healthTracker) transition(step func() healthState) {
	h.mu.Lock()
	prev := h.state
	h.state = step()
	next := h.state
	h.mu.Unlock()

	if prev != next && h.onChange != nil {
		h.onChange(prev, next)
	}
}

func (h *healthTracker) snapshot() (healthState, int, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.failures, h.backoff
}
