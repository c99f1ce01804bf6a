package gateway

import (
	"time"

	"github.com/flemzord/policychat/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind string     `yaml:"bind"`
	Auth AuthConfig `yaml:"auth"`

	// RateLimit bounds requests per client address on /v1 and /ws.
	// A zero limit disables it.
	RateLimit security.RateLimitConfig `yaml:"rate_limit"`

	// MaxMessageChars caps a single user message. Default 2000.
	MaxMessageChars int `yaml:"max_message_chars"`

	// AuditLog is a file path for JSON-lines audit events, relative to
	// the data directory. Empty disables auditing.
	AuditLog string `yaml:"audit_log"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = security.DefaultMaxUtterance
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	// Turns wait on classification, retrieval and generation.
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 90 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// AuthConfig configures authentication for /v1 and /ws.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
