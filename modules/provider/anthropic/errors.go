package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/policychat/internal/provider"
)

// statusOverloaded is Anthropic's "overloaded" status code.
const statusOverloaded = 529

var errAuth = errors.New("anthropic: authentication failed")

// errorBody is the JSON error envelope of the Messages API.
type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapError turns a Messages API failure into the sentinel the provider
// chain acts on. ctx is the caller's context. Once it is done the failure
// is the caller's timeout, so a context error is returned and the chain
// neither fails over nor marks Anthropic unhealthy. The client's own
// request timeout firing while the caller still waits means Anthropic is
// too slow and maps to ErrProviderDown.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("anthropic: %w", ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: anthropic request timed out: %w", provider.ErrProviderDown, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
		}
		return fmt.Errorf("anthropic: %w", err)
	}

	body := decodeErrorBody(apiErr.RawJSON())
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests || body.Error.Type == "rate_limit_error":
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case apiErr.StatusCode == statusOverloaded || body.Error.Type == "overloaded_error",
		apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, apiErr.StatusCode, msg)
	case apiErr.StatusCode == http.StatusBadRequest && isContextLength(body):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (HTTP %d): %s", errAuth, apiErr.StatusCode, msg)
	default:
		return fmt.Errorf("anthropic: HTTP %d: %w", apiErr.StatusCode, err)
	}
}

func decodeErrorBody(raw string) errorBody {
	var body errorBody
	_ = json.Unmarshal([]byte(raw), &body)
	return body
}

// isContextLength reports whether a 400 is about the prompt not fitting
// the model's context window. Long policy passages are the usual cause.
func isContextLength(body errorBody) bool {
	if body.Error.Type != "invalid_request_error" {
		return false
	}
	msg := strings.ToLower(body.Error.Message)
	return strings.Contains(msg, "prompt is too long") ||
		strings.Contains(msg, "context length") ||
		strings.Contains(msg, "too many tokens")
}
