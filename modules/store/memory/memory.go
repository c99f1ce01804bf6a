// Package memory implements an in-process session store on top of
// patrickmn/go-cache. State does not survive a restart and is not shared
// between processes; use store.redis for that.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/store"
	gocache "github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Interface guards.
var (
	_ store.Store       = (*Store)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const defaultCleanupInterval = time.Minute

// Config holds the in-process store configuration.
type Config struct {
	// CleanupInterval is how often expired keys are swept. Defaults to 1m.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Module registers the in-process store as "store.memory".
type Module struct {
	config Config
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.memory",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("memory store: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	if m.config.CleanupInterval <= 0 {
		m.config.CleanupInterval = defaultCleanupInterval
	}
	m.logger = ctx.Logger
	m.store = New(m.config.CleanupInterval)
	ctx.RegisterService(store.ServiceName, store.Store(m.store))
	m.logger.Info("in-process session store ready", "cleanup_interval", m.config.CleanupInterval)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store != nil {
		m.store.Flush()
	}
	return nil
}

// Store is a store.Store backed by go-cache. Scalars are held as []byte,
// lists as [][]byte. Read-modify-write operations (Append, Incr, Expire)
// are serialized by mu; plain reads go straight to the cache.
type Store struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// New creates an empty Store sweeping expired keys every cleanupInterval.
func New(cleanupInterval time.Duration) *Store {
	return &Store{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Flush drops every key.
func (s *Store) Flush() {
	s.cache.Flush()
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, store.ErrNotFound
	}
	switch val := v.(type) {
	case []byte:
		return clone(val), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	default:
		return nil, fmt.Errorf("memory store: key %q holds a %T", key, v)
	}
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, clone(value), expiration(ttl))
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.cache.Delete(k)
	}
	return nil
}

func (s *Store) Append(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list [][]byte
	if v, ok := s.cache.Get(key); ok {
		existing, isList := v.([][]byte)
		if !isList {
			return fmt.Errorf("memory store: key %q is not a list", key)
		}
		// Copy so readers holding the previous slice never observe the append.
		list = make([][]byte, len(existing), len(existing)+1)
		copy(list, existing)
	}
	list = append(list, clone(value))
	s.cache.Set(key, list, expiration(ttl))
	return nil
}

func (s *Store) List(_ context.Context, key string) ([][]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return [][]byte{}, nil
	}
	list, isList := v.([][]byte)
	if !isList {
		return nil, fmt.Errorf("memory store: key %q is not a list", key)
	}
	out := make([][]byte, len(list))
	for i, item := range list {
		out[i] = clone(item)
	}
	return out, nil
}

func (s *Store) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if v, ok := s.cache.Get(key); ok {
		switch val := v.(type) {
		case int64:
			n = val
		case []byte:
			parsed, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("memory store: key %q is not an integer", key)
			}
			n = parsed
		default:
			return 0, fmt.Errorf("memory store: key %q is not an integer", key)
		}
	}
	n++
	s.cache.Set(key, n, expiration(ttl))
	return n, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(key); ok {
		s.cache.Set(key, v, expiration(ttl))
	}
	return nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			s.cache.Delete(k)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(_ context.Context) error { return nil }
