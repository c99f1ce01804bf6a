// Package providertest provides test doubles for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/policychat/internal/provider"
)

// MockProvider is a configurable provider.Provider. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc    func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	ModelNameFunc   func() string
	HealthCheckFunc func(ctx context.Context) error

	mu            sync.Mutex
	CompleteCalls int
	HealthCalls   int
}

// Complete delegates to CompleteFunc and tracks call count.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc, defaulting to "mock".
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock"
	}
	return m.ModelNameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// Calls returns the number of Complete calls.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalls
}

// MockGenerator is a configurable provider.TextGenerator that records
// every request.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req provider.TextRequest) (string, error)

	mu       sync.Mutex
	requests []provider.TextRequest
}

// GenerateText records req and delegates to GenerateFunc.
func (m *MockGenerator) GenerateText(ctx context.Context, req provider.TextRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

// Requests returns a copy of the recorded requests.
func (m *MockGenerator) Requests() []provider.TextRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]provider.TextRequest, len(m.requests))
	copy(cp, m.requests)
	return cp
}

// Calls returns the number of GenerateText calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
	_ provider.TextGenerator = (*MockGenerator)(nil)
)
