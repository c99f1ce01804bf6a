package router

import (
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/policychat/internal/cache"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultQueryResults      = 3
	DefaultFollowupResults   = 6
	DefaultRelevanceCutoff   = 1.5
	DefaultMinCacheLength    = 50
	DefaultGenerationTimeout = 30 * time.Second
	DefaultRetrievalTimeout  = 10 * time.Second
	DefaultClassifyTimeout   = 10 * time.Second
	DefaultPersona           = "the privacy assistant"

	// acknowledgePrefix is prepended to cache hits when enabled.
	acknowledgePrefix = "As I mentioned earlier, "
)

// Config holds the dependencies and tuning of a Router.
type Config struct {
	Sessions  *session.Manager
	Cache     *cache.Cache
	Retriever retrieval.Retriever
	Generator provider.TextGenerator

	// QueryResults is the passage count for QUERY turns. Default 3.
	QueryResults int
	// FollowupResults is the passage count for FOLLOWUP turns. Default 6.
	FollowupResults int
	// RelevanceCutoff drops passages with a distance at or above it. Default 1.5.
	RelevanceCutoff float64
	// MinCacheLength is the length an answer must exceed to be cached. Default 50.
	MinCacheLength int

	GenerationTimeout time.Duration
	RetrievalTimeout  time.Duration
	ClassifyTimeout   time.Duration

	// AcknowledgeCached prefixes cache hits with "As I mentioned earlier, ".
	AcknowledgeCached bool

	// EngagementPrompts closes generated answers longer than 100 characters
	// with a question inviting the user to continue.
	EngagementPrompts bool

	// Persona is how the assistant introduces itself in prompts.
	Persona string

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

func (c Config) withDefaults() Config {
	if c.QueryResults <= 0 {
		c.QueryResults = DefaultQueryResults
	}
	if c.FollowupResults <= 0 {
		c.FollowupResults = DefaultFollowupResults
	}
	if c.RelevanceCutoff <= 0 {
		c.RelevanceCutoff = DefaultRelevanceCutoff
	}
	if c.MinCacheLength <= 0 {
		c.MinCacheLength = DefaultMinCacheLength
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = DefaultRetrievalTimeout
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = DefaultClassifyTimeout
	}
	if c.Persona == "" {
		c.Persona = DefaultPersona
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = telemetry.Tracer()
	}
	return c
}

func (c Config) validate() error {
	var errs []error
	if c.Sessions == nil {
		errs = append(errs, errors.New("router: session manager is required"))
	}
	if c.Cache == nil {
		errs = append(errs, errors.New("router: cache is required"))
	}
	if c.Retriever == nil {
		errs = append(errs, errors.New("router: retriever is required"))
	}
	if c.Generator == nil {
		errs = append(errs, errors.New("router: generator is required"))
	}
	return errors.Join(errs...)
}
