package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ChainEntry configures one provider in the chain.
type ChainEntry struct {
	Name     string
	Provider Provider
	Role     Role
	Health   HealthConfig

	// FallbackFor limits a fallback entry to the listed roles. Empty
	// means every role.
	FallbackFor []Role
}

type chainEntry struct {
	ChainEntry
	health *healthTracker
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger sets the chain logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain routes requests by role and fails over between providers on
// retryable errors. It implements TextGenerator.
type Chain struct {
	entries []chainEntry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ TextGenerator = (*Chain)(nil)

// NewChain creates a chain from the given entries.
func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	c := &Chain{entries: make([]chainEntry, len(entries))}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for i, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		if e.Role == "" {
			e.Role = RolePrimary
		}
		tracker := newHealthTracker(e.Health)
		name := e.Name
		tracker.onChange = func(from, to healthState) {
			c.logger.Warn("provider health changed", "provider", name, "from", from.String(), "to", to.String())
		}
		c.entries[i] = chainEntry{ChainEntry: e, health: tracker}
	}
	return c, nil
}

// Complete sends req to the first available provider for role, failing
// over to the next candidate on retryable errors.
func (c *Chain) Complete(ctx context.Context, role Role, req CompletionRequest) (CompletionResponse, error) {
	candidates := c.candidates(role)
	if len(candidates) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w for role %q", ErrNoProvider, role)
	}

	var lastErr error
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !e.health.available() {
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.health.success()
			return resp, nil
		}
		lastErr = err
		// A done ctx is the caller's deadline, not the provider's fault.
		if ctx.Err() != nil || !IsRetryable(err) {
			return CompletionResponse{}, err
		}
		e.health.failure()
		c.logger.Warn("provider failed, failing over", "provider", e.Name, "role", role, "error", err)
	}

	if lastErr != nil {
		return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
	}
	return CompletionResponse{}, fmt.Errorf("%w for role %q: all candidates unavailable", ErrAllProviders, role)
}

// GenerateText implements TextGenerator.
func (c *Chain) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	var msgs []Message
	if req.System != "" {
		msgs = append(msgs, Message{Role: MessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, Message{Role: MessageRoleUser, Content: req.Prompt})

	role := req.Role
	if role == "" {
		role = RolePrimary
	}
	resp, err := c.Complete(ctx, role, CompletionRequest{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyResponse)
	}
	return text, nil
}

// candidates returns direct role matches first, then applicable fallbacks.
// Internal requests fall back to primary entries before dedicated fallbacks.
func (c *Chain) candidates(role Role) []*chainEntry {
	var direct, primary, fallbacks []*chainEntry
	for i := range c.entries {
		e := &c.entries[i]
		switch {
		case e.Role == role:
			direct = append(direct, e)
		case role == RoleInternal && e.Role == RolePrimary:
			primary = append(primary, e)
		case e.Role == RoleFallback && e.covers(role):
			fallbacks = append(fallbacks, e)
		}
	}
	return append(append(direct, primary...), fallbacks...)
}

func (e *chainEntry) covers(role Role) bool {
	if len(e.FallbackFor) == 0 {
		return true
	}
	for _, r := range e.FallbackFor {
		if r == role {
			return true
		}
	}
	return false
}

// EntryStatus is a point-in-time view of one chain entry.
type EntryStatus struct {
	Name     string        `json:"name"`
	Model    string        `json:"model"`
	Role     Role          `json:"role"`
	State    string        `json:"state"`
	Failures int           `json:"failures"`
	Backoff  time.Duration `json:"backoff"`
}

// Status reports the health of every entry in configuration order.
func (c *Chain) Status() []EntryStatus {
	out := make([]EntryStatus, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		state, failures, backoff := e.health.snapshot()
		out[i] = EntryStatus{
			Name:     e.Name,
			Model:    e.Provider.ModelName(),
			Role:     e.Role,
			State:    state.String(),
			Failures: failures,
			Backoff:  backoff,
		}
	}
	return out
}

// HealthCheck reports an error when no entry can currently serve
// primary requests. It does not call any provider.
func (c *Chain) HealthCheck(_ context.Context) error {
	for _, e := range c.candidates(RolePrimary) {
		if e.health.available() {
			return nil
		}
	}
	return fmt.Errorf("%w for role %q: all candidates unavailable", ErrAllProviders, RolePrimary)
}

// Start probes unavailable entries in the background until Stop.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.probeLoop(ctx, c.probeInterval())
}

// Stop ends background probing and waits for the loop to exit.
func (c *Chain) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Chain) probeInterval() time.Duration {
	interval := c.entries[0].health.cfg.CheckInterval
	for i := 1; i < len(c.entries); i++ {
		interval = min(interval, c.entries[i].health.cfg.CheckInterval)
	}
	return interval
}

func (c *Chain) probeLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *Chain) probe(ctx context.Context) {
	for i := range c.entries {
		e := &c.entries[i]
		if !e.health.needsProbe() {
			continue
		}
		hc, ok := e.Provider.(HealthChecker)
		if !ok {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := hc.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			c.logger.Debug("provider probe failed", "provider", e.Name, "error", err)
			continue
		}
		e.health.success()
	}
}
