// Package anthropic implements the provider.anthropic module on the
// Anthropic Messages API.
package anthropic

import (
	"errors"
	"log/slog"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module            = (*Anthropic)(nil)
	_ core.Configurable      = (*Anthropic)(nil)
	_ core.Provisioner       = (*Anthropic)(nil)
	_ core.Validator         = (*Anthropic)(nil)
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
	_ provider.Member        = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	// Config takes precedence over the environment.
	apiKey := a.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(a.config.APIKeyEnv)
	}
	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorServiceName); ok {
		r.AddLiteral(apiKey)
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	// The provider chain handles retries.
	opts = append(opts,
		option.WithMaxRetries(0),
		option.WithRequestTimeout(a.config.Timeout),
	)

	client := sdkanthropic.NewClient(opts...)
	a.client = &client

	ctx.RegisterService("provider.anthropic", a)
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return a.config.validate()
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}

// ChainEntry implements provider.Member.
func (a *Anthropic) ChainEntry() (provider.ChainEntry, error) {
	return a.config.Entry("provider.anthropic", a)
}
