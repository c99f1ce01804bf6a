// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for policychat.
package config

import (
	"time"

	"github.com/flemzord/policychat/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir holds on-disk state such as retriever indexes. Defaults to
	// "./data".
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	Assistant Assistant               `yaml:"assistant"`
	Tracing   telemetry.TracingConfig `yaml:"tracing"`

	// Secrets lists extra literal values to mask in logs and output.
	Secrets []string `yaml:"secrets,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.redis").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// Assistant holds the conversation tunables.
type Assistant struct {
	SessionTTL        time.Duration `yaml:"session_ttl"`
	MaxSessions       int           `yaml:"max_sessions"`
	QueryResults      int           `yaml:"query_results"`
	FollowupResults   int           `yaml:"followup_results"`
	RelevanceCutoff   float64       `yaml:"relevance_cutoff"`
	MinCacheLength    int           `yaml:"min_cache_length"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	RetrievalTimeout  time.Duration `yaml:"retrieval_timeout"`
	SimilarityTimeout time.Duration `yaml:"similarity_timeout"`
	ClassifyTimeout   time.Duration `yaml:"classify_timeout"`
	AcknowledgeCached bool          `yaml:"acknowledge_cached"`
	EngagementPrompts bool          `yaml:"engagement_prompts"`
	Persona           string        `yaml:"persona"`
}

// Defaults for the assistant section.
const (
	DefaultDataDir           = "./data"
	DefaultLogLevel          = "info"
	DefaultSessionTTL        = time.Hour
	DefaultQueryResults      = 3
	DefaultFollowupResults   = 6
	DefaultRelevanceCutoff   = 1.5
	DefaultMinCacheLength    = 50
	DefaultGenerationTimeout = 30 * time.Second
	DefaultRetrievalTimeout  = 10 * time.Second
	DefaultSimilarityTimeout = 10 * time.Second
	DefaultClassifyTimeout   = 10 * time.Second
)

// ApplyDefaults fills every zero-valued tunable.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	a := &c.Assistant
	if a.SessionTTL == 0 {
		a.SessionTTL = DefaultSessionTTL
	}
	if a.QueryResults == 0 {
		a.QueryResults = DefaultQueryResults
	}
	if a.FollowupResults == 0 {
		a.FollowupResults = DefaultFollowupResults
	}
	if a.RelevanceCutoff == 0 {
		a.RelevanceCutoff = DefaultRelevanceCutoff
	}
	if a.MinCacheLength == 0 {
		a.MinCacheLength = DefaultMinCacheLength
	}
	if a.GenerationTimeout == 0 {
		a.GenerationTimeout = DefaultGenerationTimeout
	}
	if a.RetrievalTimeout == 0 {
		a.RetrievalTimeout = DefaultRetrievalTimeout
	}
	if a.SimilarityTimeout == 0 {
		a.SimilarityTimeout = DefaultSimilarityTimeout
	}
	if a.ClassifyTimeout == 0 {
		a.ClassifyTimeout = DefaultClassifyTimeout
	}
}
