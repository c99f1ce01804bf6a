// Package openai implements the provider.openai module on the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"log/slog"
	"os"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/security"
	sdkopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.Member        = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider implements the OpenAI Chat Completions API as a provider module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *sdkopenai.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger

	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(p.config.APIKeyEnv)
	}
	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorServiceName); ok {
		r.AddLiteral(apiKey)
	}

	opts := []option.RequestOption{
		option.WithRequestTimeout(p.config.Timeout),
		// The provider chain owns failover.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if p.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.config.BaseURL))
	}
	client := sdkopenai.NewClient(opts...)
	p.client = &client

	ctx.RegisterService("provider.openai", p)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// ChainEntry implements provider.Member.
func (p *Provider) ChainEntry() (provider.ChainEntry, error) {
	return p.config.Entry("provider.openai", p)
}

// Complete sends a non-streaming chat completion request.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return provider.CompletionResponse{}, mapError(ctx, err)
	}
	return fromCompletion(resp), nil
}

// HealthCheck sends a one-token completion; the API has no cheaper probe
// that exercises the configured model.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Chat.Completions.New(ctx, sdkopenai.ChatCompletionNewParams{
		Model:               sdkopenai.ChatModel(p.config.Model),
		Messages:            []sdkopenai.ChatCompletionMessageParamUnion{sdkopenai.UserMessage("ping")},
		MaxCompletionTokens: sdkopenai.Int(1),
	})
	return mapError(ctx, err)
}

// buildParams merges request-level overrides with config defaults.
func (p *Provider) buildParams(req provider.CompletionRequest) sdkopenai.ChatCompletionNewParams {
	params := sdkopenai.ChatCompletionNewParams{
		Model:    sdkopenai.ChatModel(p.config.Model),
		Messages: toMessages(req.Messages),
	}

	switch {
	case req.MaxTokens > 0:
		params.MaxCompletionTokens = sdkopenai.Int(int64(req.MaxTokens))
	case p.config.MaxTokens > 0:
		params.MaxCompletionTokens = sdkopenai.Int(int64(p.config.MaxTokens))
	}

	switch {
	case req.Temperature != nil:
		params.Temperature = sdkopenai.Float(*req.Temperature)
	case p.config.Temperature != nil:
		params.Temperature = sdkopenai.Float(*p.config.Temperature)
	}
	return params
}

func toMessages(msgs []provider.Message) []sdkopenai.ChatCompletionMessageParamUnion {
	out := make([]sdkopenai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleSystem:
			out = append(out, sdkopenai.SystemMessage(m.Content))
		case provider.MessageRoleAssistant:
			out = append(out, sdkopenai.AssistantMessage(m.Content))
		default:
			out = append(out, sdkopenai.UserMessage(m.Content))
		}
	}
	return out
}

func fromCompletion(resp *sdkopenai.ChatCompletion) provider.CompletionResponse {
	out := provider.CompletionResponse{
		Usage: provider.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	switch choice.FinishReason {
	case "length":
		out.FinishReason = provider.FinishReasonLength
	case "content_filter":
		out.FinishReason = provider.FinishReasonFiltering
	default:
		out.FinishReason = provider.FinishReasonStop
	}
	return out
}
