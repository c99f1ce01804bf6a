package provider

import "errors"

var (
	// ErrGeneration wraps every failure returned by TextGenerator.
	ErrGeneration = errors.New("provider: generation failed")

	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider: rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("provider: context length exceeded")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider: unavailable")

	// ErrAllProviders indicates every candidate for a role failed.
	ErrAllProviders = errors.New("provider: all providers failed")

	// ErrNoProvider indicates no provider is configured for the requested role.
	ErrNoProvider = errors.New("provider: no provider configured")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("provider: empty response")
)

// IsRetryable reports whether another provider may succeed where this
// one failed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
