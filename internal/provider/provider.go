// Package provider defines the LLM provider contract, a role-aware
// failover chain with health tracking, and the single-prompt text
// generation API the assistant uses for classification, similarity
// judgments and answers.
package provider

import "context"

// Provider talks to one LLM backend. Implementations live under
// modules/provider and also implement core.Module.
type Provider interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is implemented by providers that support an active
// probe. The chain uses it to revive providers in cooldown.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// TextRequest is a single-shot prompt: one optional system instruction
// and one user message.
type TextRequest struct {
	// Role selects which chain entries may serve the request.
	Role Role

	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// TextGenerator produces text for a single prompt. Every failure wraps
// ErrGeneration.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// Float returns a pointer to v, for optional request parameters.
func Float(v float64) *float64 { return &v }
