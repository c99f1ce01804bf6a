// Package cache implements the per-session semantic answer cache: an
// exact lookup keyed by a digest of the normalized query, and a similarity
// lookup that asks a language model whether a new question paraphrases
// one already answered in the session.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/store"
)

// Entry is one cached answer.
type Entry struct {
	OriginalQuery   string    `json:"original_query"`
	NormalizedQuery string    `json:"normalized_query"`
	Response        string    `json:"response"`
	CreatedAt       time.Time `json:"timestamp"`
}

const defaultJudgeTimeout = 10 * time.Second

// Config configures a Cache.
type Config struct {
	Store store.Store

	// Judge answers similarity questions. When nil, LookupSimilar always misses.
	Judge provider.TextGenerator

	// TTL is applied to every entry; the session manager refreshes it.
	TTL time.Duration

	// JudgeTimeout bounds the similarity call. Defaults to 10s.
	JudgeTimeout time.Duration

	Logger *slog.Logger
}

// Cache is safe for concurrent use.
type Cache struct {
	store        store.Store
	judge        provider.TextGenerator
	ttl          time.Duration
	judgeTimeout time.Duration
	logger       *slog.Logger

	// now is injectable for testing.
	now func() time.Time
}

// New creates a Cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Store == nil {
		return nil, errors.New("cache: store is required")
	}
	if cfg.JudgeTimeout <= 0 {
		cfg.JudgeTimeout = defaultJudgeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		store:        cfg.Store,
		judge:        cfg.Judge,
		ttl:          cfg.TTL,
		judgeTimeout: cfg.JudgeTimeout,
		logger:       cfg.Logger.With("component", "cache"),
		now:          time.Now,
	}, nil
}

// LookupExact returns the cached answer for a query whose normalized form
// matches a stored entry. It makes no model calls. Store failures are
// returned; a missing or undecodable entry is a miss.
func (c *Cache) LookupExact(ctx context.Context, sessionID, query string) (string, bool, error) {
	raw, err := c.store.Get(ctx, store.CacheKey(sessionID, Digest(Normalize(query))))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: exact lookup: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "session_id", sessionID, "error", err)
		return "", false, nil
	}
	return e.Response, true, nil
}

// LookupSimilar asks the judge whether query is equivalent to one of the
// session's cached questions and returns that entry's answer. Call it only
// after LookupExact missed. It never calls the judge when the session has
// no entries, and it never fails: any error is logged and treated as a miss.
func (c *Cache) LookupSimilar(ctx context.Context, sessionID, query string) (string, bool) {
	if c.judge == nil {
		return "", false
	}
	entries, err := c.Entries(ctx, sessionID)
	if err != nil {
		c.logger.Warn("similarity lookup skipped", "session_id", sessionID, "error", err)
		return "", false
	}
	if len(entries) == 0 {
		return "", false
	}

	questions := make([]string, len(entries))
	for i, e := range entries {
		questions[i] = e.OriginalQuery
	}

	judgeCtx, cancel := context.WithTimeout(ctx, c.judgeTimeout)
	defer cancel()
	verdict, err := c.judge.GenerateText(judgeCtx, provider.TextRequest{
		Role:        provider.RoleInternal,
		System:      similaritySystemPrompt,
		Prompt:      SimilarityPrompt(query, questions),
		MaxTokens:   8,
		Temperature: provider.Float(0),
	})
	if err != nil {
		c.logger.Warn("similarity judge failed, treating as miss", "session_id", sessionID, "error", err)
		return "", false
	}

	idx, ok := ParseVerdict(verdict, len(entries))
	if !ok {
		c.logger.Debug("no similar cached question", "session_id", sessionID, "verdict", verdict)
		return "", false
	}
	return entries[idx-1].Response, true
}

// Store caches response for query, replacing any entry with the same
// normalized form, and records the entry in the session's cache index.
func (c *Cache) Store(ctx context.Context, sessionID, query, response string) error {
	normalized := Normalize(query)
	digest := Digest(normalized)
	raw, err := json.Marshal(Entry{
		OriginalQuery:   query,
		NormalizedQuery: normalized,
		Response:        response,
		CreatedAt:       c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := c.store.Set(ctx, store.CacheKey(sessionID, digest), raw, c.ttl); err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	if err := c.store.Append(ctx, store.CacheIndexKey(sessionID), []byte(digest), c.ttl); err != nil {
		return fmt.Errorf("cache: index: %w", err)
	}
	return nil
}

// Digests returns the distinct entry digests indexed for a session in
// first-stored order. Digests of expired entries may still be listed.
func (c *Cache) Digests(ctx context.Context, sessionID string) ([]string, error) {
	digests, err := store.CacheDigests(ctx, c.store, sessionID)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return digests, nil
}

// Entries returns the session's cached entries, oldest first. The order
// defines the 1-based numbering used by the similarity judge.
func (c *Cache) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	digests, err := c.Digests(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(digests))
	for _, d := range digests {
		raw, err := c.store.Get(ctx, store.CacheKey(sessionID, d))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cache: read entry: %w", err)
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return entries, nil
}

// Len returns the number of live cached entries of a session.
func (c *Cache) Len(ctx context.Context, sessionID string) (int, error) {
	entries, err := c.Entries(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("cache: count entries: %w", err)
	}
	return len(entries), nil
}

const similaritySystemPrompt = "You compare questions about a privacy policy. " +
	"Reply with a single number or the word NONE and nothing else."

// SimilarityPrompt builds the judge prompt listing the prior questions
// numbered from 1.
func SimilarityPrompt(query string, questions []string) string {
	var b strings.Builder
	b.WriteString("Previously answered questions:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	fmt.Fprintf(&b, "\nNew question: %s\n\n", query)
	b.WriteString("Is the new question asking for the same information as one of the previous questions? ")
	b.WriteString("If yes, reply with that question's number only. If none match, reply NONE.")
	return b.String()
}
