package anthropic

import (
	"errors"
	"time"

	"github.com/flemzord/policychat/internal/provider"
)

// defaultModel is the model used when none is specified.
const defaultModel = "claude-haiku-4-5"

// defaultTimeout bounds a single Messages API request.
const defaultTimeout = 30 * time.Second

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	APIKey    string        `yaml:"api_key"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`

	provider.Placement `yaml:",inline"`
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	if c.Model == "" {
		return errors.New("provider.anthropic: model must not be empty")
	}
	if c.MaxTokens < 0 {
		return errors.New("provider.anthropic: max_tokens must be non-negative")
	}
	return c.Placement.Validate()
}
