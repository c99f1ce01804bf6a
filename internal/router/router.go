package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/flemzord/policychat/internal/cache"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the service registry name of the Router.
const ServiceName = "assistant.router"

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Response string `json:"response"`
	Intent   Intent `json:"intent"`

	// EndSession asks the caller to terminate the session after replying.
	EndSession bool `json:"end_session"`

	// Cached is true when the answer came from the semantic cache.
	Cached bool `json:"cached"`
}

// Router handles conversational turns. It holds no per-session state of
// its own and is safe for concurrent use.
type Router struct {
	sessions  *session.Manager
	cache     *cache.Cache
	retriever retrieval.Retriever
	generator provider.TextGenerator

	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New creates a Router.
func New(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Router{
		sessions:  cfg.Sessions,
		cache:     cfg.Cache,
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "router"),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}, nil
}

// StartSession creates a new session.
func (r *Router) StartSession(ctx context.Context) (string, error) {
	id, err := r.sessions.Create(ctx)
	if err != nil {
		return "", err
	}
	r.metrics.RecordSessionCreated()
	r.logger.Info("session started", "session_id", id)
	return id, nil
}

// EndSession removes every trace of a session. Ending an unknown session
// succeeds.
func (r *Router) EndSession(ctx context.Context, sessionID string) error {
	if err := r.sessions.Terminate(ctx, sessionID); err != nil {
		return err
	}
	r.metrics.RecordSessionTerminated()
	r.logger.Info("session ended", "session_id", sessionID)
	return nil
}

// Sessions returns the session manager.
func (r *Router) Sessions() *session.Manager {
	return r.sessions
}

// HandleTurn runs one turn for sessionID.
//
// It returns session.ErrNotFound for unknown or expired sessions and
// ErrEmptyUtterance for blank input. When the session store is
// unreachable the error wraps store.ErrUnavailable and the result still
// carries the service-unavailable reply. Every other failure is absorbed
// into a fixed reply.
func (r *Router) HandleTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "router.HandleTurn", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return TurnResult{}, ErrEmptyUtterance
	}

	if _, err := r.sessions.Touch(ctx, sessionID); err != nil {
		return r.abort(span, sessionID, IntentUnclear, err)
	}
	if err := r.sessions.AppendHistory(ctx, sessionID, session.RoleUser, utterance); err != nil {
		return r.abort(span, sessionID, IntentUnclear, err)
	}

	intent := r.classify(ctx, sessionID, utterance)
	res, cacheKey, err := r.respond(ctx, sessionID, intent, utterance)
	if err != nil {
		return r.abort(span, sessionID, res.Intent, err)
	}

	if cacheKey != "" {
		if err := r.cache.Store(ctx, sessionID, cacheKey, res.Response); err != nil {
			return r.abort(span, sessionID, res.Intent, err)
		}
	}
	if err := r.sessions.AppendHistory(ctx, sessionID, session.RoleAssistant, res.Response); err != nil {
		return r.abort(span, sessionID, res.Intent, err)
	}

	outcome := "generated"
	if res.Cached {
		outcome = "cached"
	}
	elapsed := time.Since(start)
	r.metrics.RecordTurn(string(res.Intent), outcome, elapsed)
	span.SetAttributes(
		attribute.String("turn.intent", string(res.Intent)),
		attribute.Bool("turn.cached", res.Cached),
	)
	r.logger.Info("turn handled",
		"session_id", sessionID,
		"intent", res.Intent,
		"cached", res.Cached,
		"end_session", res.EndSession,
		"duration", elapsed,
	)
	return res, nil
}

// respond resolves the reply for a classified turn. cacheKey is the query
// under which the reply must be cached, or empty when it is not eligible.
// Only store failures are returned as errors.
func (r *Router) respond(ctx context.Context, sessionID string, intent Intent, utterance string) (res TurnResult, cacheKey string, err error) {
	res = TurnResult{Intent: intent, EndSession: intent == IntentGoodbye}

	switch intent {
	case IntentGreeting:
		res.Response = r.generateOr(ctx, intent, personaPrompt(r.cfg.Persona), greetingPrompt)
		return res, "", nil

	case IntentGoodbye:
		res.Response = r.generateOr(ctx, intent, personaPrompt(r.cfg.Persona), goodbyePrompt)
		return res, "", nil

	case IntentUnclear:
		res.Response = r.generateOr(ctx, intent, personaPrompt(r.cfg.Persona), unclearPrompt(utterance))
		return res, "", nil
	}

	// QUERY and FOLLOWUP share the cache path.
	query, previous := utterance, ""
	if intent == IntentFollowup {
		prev, ok, err := r.sessions.LastUserQuery(ctx, sessionID, true)
		if err != nil {
			return res, "", err
		}
		switch {
		case !ok:
			r.logger.Debug("followup without previous question, answering as query", "session_id", sessionID)
			intent = IntentQuery
			res.Intent = intent
		case strings.EqualFold(strings.TrimSpace(prev), utterance):
			// A repeated "tell me more" widens the same request again.
			previous = prev
		default:
			previous = prev
			query = prev + followupCue
		}
	}

	// The expanded follow-up query quotes the previous question, so the
	// similarity judge would match it against that question's short answer.
	// Follow-ups only reuse an exact match of the same expansion.
	cached, hit, err := r.lookup(ctx, sessionID, query, intent != IntentFollowup)
	if err != nil {
		return res, "", err
	}
	if hit {
		res.Cached = true
		res.Response = cached
		if r.cfg.AcknowledgeCached {
			res.Response = acknowledgePrefix + cached
		}
		return res, "", nil
	}

	answer, err := r.answer(ctx, intent, query, utterance, previous)
	if err != nil {
		msg, kind := Fallback(intent, err)
		r.metrics.RecordFallback(kind)
		r.logger.Warn("answer failed, using fallback", "session_id", sessionID, "intent", intent, "kind", kind, "error", err)
		res.Response = msg
		if !errors.Is(err, ErrNoContext) {
			return res, "", nil
		}
	} else {
		res.Response = r.engage(intent, answer)
	}

	if len(res.Response) > r.cfg.MinCacheLength {
		cacheKey = query
	}
	return res, cacheKey, nil
}

// lookup tries the exact cache, then the similarity judge when similar is set.
func (r *Router) lookup(ctx context.Context, sessionID, query string, similar bool) (string, bool, error) {
	resp, hit, err := r.cache.LookupExact(ctx, sessionID, query)
	if err != nil {
		return "", false, err
	}
	r.metrics.RecordCacheLookup("exact", hit)
	if hit || !similar {
		return resp, hit, nil
	}

	ctx, span := r.tracer.Start(ctx, "cache.LookupSimilar")
	defer span.End()
	resp, hit = r.cache.LookupSimilar(ctx, sessionID, query)
	r.metrics.RecordCacheLookup("similar", hit)
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	return resp, hit, nil
}

// engage closes a substantial generated answer with an invitation to keep
// asking, when enabled.
func (r *Router) engage(intent Intent, answer string) string {
	if !r.cfg.EngagementPrompts || len(answer) <= engagementMinLength {
		return answer
	}
	prompts := queryEngagement
	if intent == IntentFollowup {
		prompts = followupEngagement
	}
	return answer + "\n\n" + prompts[rand.IntN(len(prompts))]
}

// answer retrieves context for query and generates a grounded reply.
func (r *Router) answer(ctx context.Context, intent Intent, query, utterance, previous string) (string, error) {
	limit := r.cfg.QueryResults
	if intent == IntentFollowup {
		limit = r.cfg.FollowupResults
	}

	passages, err := r.retrieve(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(passages) == 0 {
		return "", ErrNoContext
	}

	prompt := answerPrompt(utterance, passages)
	if intent == IntentFollowup {
		prompt = followupPrompt(previous, passages)
	}
	text, err := r.generate(ctx, personaPrompt(r.cfg.Persona), prompt)
	if err != nil {
		return "", err
	}
	text = stripGreeting(text)
	if text == "" {
		return "", fmt.Errorf("%w: %w", provider.ErrGeneration, provider.ErrEmptyResponse)
	}
	return text, nil
}

func (r *Router) retrieve(ctx context.Context, query string, limit int) ([]retrieval.Passage, error) {
	ctx, span := r.tracer.Start(ctx, "retriever.Search", trace.WithAttributes(attribute.Int("retrieval.limit", limit)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RetrievalTimeout)
	defer cancel()

	passages, err := r.retriever.Search(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		if !errors.Is(err, retrieval.ErrRetrieval) {
			err = fmt.Errorf("%w: %w", retrieval.ErrRetrieval, err)
		}
		return nil, err
	}
	relevant := retrieval.Relevant(passages, r.cfg.RelevanceCutoff)
	span.SetAttributes(attribute.Int("retrieval.hits", len(passages)), attribute.Int("retrieval.relevant", len(relevant)))
	return relevant, nil
}

func (r *Router) generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "generator.GenerateText")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GenerationTimeout)
	defer cancel()

	text, err := r.generator.GenerateText(ctx, provider.TextRequest{
		Role:   provider.RolePrimary,
		System: system,
		Prompt: prompt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		if !errors.Is(err, provider.ErrGeneration) {
			err = fmt.Errorf("%w: %w", provider.ErrGeneration, err)
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// generateOr generates a reply, falling back to the fixed message for the
// intent on failure.
func (r *Router) generateOr(ctx context.Context, intent Intent, system, prompt string) string {
	text, err := r.generate(ctx, system, prompt)
	if err == nil && text != "" {
		return text
	}
	if err == nil {
		err = fmt.Errorf("%w: %w", provider.ErrGeneration, provider.ErrEmptyResponse)
	}
	msg, kind := Fallback(intent, err)
	r.metrics.RecordFallback(kind)
	r.logger.Warn("generation failed, using fallback", "intent", intent, "error", err)
	return msg
}

// classify asks the internal model for the intent. It never fails: an
// error or unparseable reply yields IntentUnclear.
func (r *Router) classify(ctx context.Context, sessionID, utterance string) Intent {
	ctx, span := r.tracer.Start(ctx, "router.classify")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ClassifyTimeout)
	defer cancel()

	reply, err := r.generator.GenerateText(ctx, provider.TextRequest{
		Role:        provider.RoleInternal,
		System:      classifySystemPrompt,
		Prompt:      classifyPrompt(utterance),
		MaxTokens:   10,
		Temperature: provider.Float(0),
	})
	if err != nil {
		r.logger.Warn("classification failed, treating as unclear", "session_id", sessionID, "error", err)
		return IntentUnclear
	}
	intent, err := ParseIntent(reply)
	if err != nil {
		r.logger.Warn("classification ambiguous, treating as unclear", "session_id", sessionID, "error", err)
	}
	span.SetAttributes(attribute.String("turn.intent", string(intent)))
	return intent
}

// abort ends a turn that cannot proceed. Store outages carry the
// service-unavailable reply; session.ErrNotFound is returned as is.
func (r *Router) abort(span trace.Span, sessionID string, intent Intent, err error) (TurnResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, session.ErrNotFound) {
		return TurnResult{}, err
	}
	if !errors.Is(err, store.ErrUnavailable) {
		err = fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	msg, kind := Fallback(intent, err)
	r.metrics.RecordFallback(kind)
	r.logger.Error("turn aborted", "session_id", sessionID, "intent", intent, "error", err)
	return TurnResult{Response: msg, Intent: intent}, err
}
