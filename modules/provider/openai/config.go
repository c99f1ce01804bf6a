package openai

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/policychat/internal/provider"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

// Config holds the configuration for the OpenAI provider module. Any
// Chat Completions compatible endpoint works through BaseURL.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	provider.Placement `yaml:",inline"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	if c.Model == "" {
		return errors.New("provider.openai: model is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.openai: max_tokens must be non-negative, got %d", c.MaxTokens)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("provider.openai: temperature must be within [0, 2], got %v", *c.Temperature)
	}
	return c.Placement.Validate()
}
