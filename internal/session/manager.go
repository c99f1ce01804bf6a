package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/flemzord/policychat/internal/store"
	"github.com/google/uuid"
)

// DefaultTTL is the inactivity window after which a session expires.
const DefaultTTL = time.Hour

// Config configures a Manager.
type Config struct {
	Store store.Store

	// TTL is the inactivity window. Defaults to DefaultTTL.
	TTL time.Duration

	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int

	Logger *slog.Logger
}

// Manager creates, refreshes and tears down sessions. It is safe for
// concurrent use and holds no per-session state of its own.
type Manager struct {
	store       store.Store
	ttl         time.Duration
	maxSessions int
	logger      *slog.Logger

	// now and newID are injectable for testing.
	now   func() time.Time
	newID func() string
}

// NewManager creates a Manager over cfg.Store.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		store:       cfg.Store,
		ttl:         cfg.TTL,
		maxSessions: cfg.MaxSessions,
		logger:      cfg.Logger.With("component", "session"),
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// TTL returns the inactivity window applied to every session key.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create starts a new session with a zero query count and returns its ID.
func (m *Manager) Create(ctx context.Context) (string, error) {
	if m.maxSessions > 0 {
		n, err := m.Count(ctx)
		if err != nil {
			return "", err
		}
		if n >= m.maxSessions {
			return "", ErrLimitReached
		}
	}

	id := m.newID()
	now := m.now().UTC()

	raw, err := json.Marshal(meta{CreatedAt: now})
	if err != nil {
		return "", fmt.Errorf("session: encode metadata: %w", err)
	}
	// Counter and activity first: the session only becomes visible once
	// its metadata key exists.
	if err := m.store.Set(ctx, store.QueriesKey(id), []byte("0"), m.ttl); err != nil {
		return "", fmt.Errorf("session: create %s: %w", id, err)
	}
	if err := m.store.Set(ctx, store.ActivityKey(id), formatTime(now), m.ttl); err != nil {
		return "", fmt.Errorf("session: create %s: %w", id, err)
	}
	if err := m.store.Set(ctx, store.SessionKey(id), raw, m.ttl); err != nil {
		return "", fmt.Errorf("session: create %s: %w", id, err)
	}

	m.logger.Debug("session created", "session_id", id)
	return id, nil
}

// Touch records one turn: the query count goes up by exactly one, the
// last-activity timestamp moves forward and every key of the session gets
// a fresh TTL. It returns the new query count, or ErrNotFound when the
// session no longer exists.
func (m *Manager) Touch(ctx context.Context, id string) (int64, error) {
	if _, err := m.loadMeta(ctx, id); err != nil {
		return 0, err
	}

	count, err := m.store.Incr(ctx, store.QueriesKey(id), m.ttl)
	if err != nil {
		return 0, fmt.Errorf("session: touch %s: %w", id, err)
	}

	now := m.now().UTC()
	if prev, err := m.lastActivity(ctx, id); err == nil && prev.After(now) {
		now = prev
	}
	if err := m.store.Set(ctx, store.ActivityKey(id), formatTime(now), m.ttl); err != nil {
		return 0, fmt.Errorf("session: touch %s: %w", id, err)
	}

	if err := m.refreshTTL(ctx, id); err != nil {
		return 0, fmt.Errorf("session: touch %s: %w", id, err)
	}
	return count, nil
}

func (m *Manager) refreshTTL(ctx context.Context, id string) error {
	keys := []string{store.SessionKey(id), store.HistoryKey(id), store.CacheIndexKey(id)}
	cacheKeys, err := store.CacheKeys(ctx, m.store, id)
	if err != nil {
		return err
	}
	keys = append(keys, cacheKeys...)
	for _, k := range keys {
		if err := m.store.Expire(ctx, k, m.ttl); err != nil {
			return err
		}
	}
	return nil
}

// Terminate removes the session with its history and cached answers.
// Terminating an unknown or already terminated session is not an error.
//
// The metadata key goes first so a concurrent Touch sees ErrNotFound
// instead of reviving the session; anything left behind by a failure
// after that point is unreachable and expires with its TTL. Cache entries
// are found through the session's cache index, never by scanning.
func (m *Manager) Terminate(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, store.SessionKey(id)); err != nil {
		return fmt.Errorf("session: terminate %s: %w", id, err)
	}
	cacheKeys, err := store.CacheKeys(ctx, m.store, id)
	if err != nil {
		return fmt.Errorf("session: terminate %s: %w", id, err)
	}
	keys := append([]string{store.HistoryKey(id), store.QueriesKey(id), store.ActivityKey(id), store.CacheIndexKey(id)}, cacheKeys...)
	if err := m.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("session: terminate %s: %w", id, err)
	}
	m.logger.Debug("session terminated", "session_id", id, "cache_entries", len(cacheKeys))
	return nil
}

// Info returns the current state of a session.
func (m *Manager) Info(ctx context.Context, id string) (Session, error) {
	md, err := m.loadMeta(ctx, id)
	if err != nil {
		return Session{}, err
	}
	s := Session{ID: id, CreatedAt: md.CreatedAt, LastActivity: md.CreatedAt}

	if ts, err := m.lastActivity(ctx, id); err == nil {
		s.LastActivity = ts
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("session: info %s: %w", id, err)
	}

	raw, err := m.store.Get(ctx, store.QueriesKey(id))
	switch {
	case err == nil:
		s.QueryCount, _ = strconv.ParseInt(string(raw), 10, 64)
	case !errors.Is(err, store.ErrNotFound):
		return Session{}, fmt.Errorf("session: info %s: %w", id, err)
	}
	return s, nil
}

// Exists reports whether the session is live.
func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	_, err := m.loadMeta(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Count returns the number of live sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx, store.SessionKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("session: count: %w", err)
	}
	n := 0
	for _, k := range keys {
		if _, ok := store.SessionIDFromKey(k); ok {
			n++
		}
	}
	return n, nil
}

func (m *Manager) loadMeta(ctx context.Context, id string) (meta, error) {
	raw, err := m.store.Get(ctx, store.SessionKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return meta{}, ErrNotFound
	}
	if err != nil {
		return meta{}, fmt.Errorf("session: load %s: %w", id, err)
	}
	var md meta
	if err := json.Unmarshal(raw, &md); err != nil {
		return meta{}, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return md, nil
}

func (m *Manager) lastActivity(ctx context.Context, id string) (time.Time, error) {
	raw, err := m.store.Get(ctx, store.ActivityKey(id))
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session: activity of %s: %w", id, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

func formatTime(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixNano(), 10))
}
