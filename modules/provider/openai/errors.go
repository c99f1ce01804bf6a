package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/policychat/internal/provider"
	sdkopenai "github.com/openai/openai-go"
)

// errAuth is a non-retryable authentication error.
var errAuth = errors.New("openai: authentication failed")

// mapError converts an SDK error into a provider sentinel error. When the
// caller's ctx is done the result is a context error, which the chain does
// not hold against the provider; the client's own timeout is ErrProviderDown.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("openai: %w", ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: openai request timed out: %w", provider.ErrProviderDown, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *sdkopenai.Error
	if !errors.As(err, &apiErr) {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
		}
		return fmt.Errorf("openai: %w", err)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Message)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", errAuth, apiErr.Message)
	case apiErr.StatusCode == http.StatusBadRequest && isContextLength(apiErr):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
	case apiErr.StatusCode >= 500:
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, apiErr.Message)
	default:
		return fmt.Errorf("openai: HTTP %d: %w", apiErr.StatusCode, err)
	}
}

func isContextLength(apiErr *sdkopenai.Error) bool {
	return apiErr.Code == "context_length_exceeded" ||
		strings.Contains(strings.ToLower(apiErr.Message), "context length")
}
