// Package redis implements the session store on Redis via go-redis.
// Session keys carry native TTLs, so abandoned sessions are reclaimed by
// Redis itself.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/modules/store/memory"
	goredis "github.com/redis/go-redis/v9"
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
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module registers the Redis store as "store.redis".
type Module struct {
	config   Config
	logger   *slog.Logger
	store    *Store
	fallback *memory.Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.redis",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("redis store: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorServiceName); ok {
		r.AddLiteral(m.config.Password)
	}

	opts, err := m.options()
	if err != nil {
		return err
	}
	s := New(goredis.NewClient(opts), m.config.ScanCount)

	pingCtx, cancel := context.WithTimeout(context.Background(), m.config.DialTimeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = s.Close()
		if !m.config.FallbackMemory {
			return err
		}
		m.logger.Warn("redis unreachable, serving sessions from process memory", "addr", opts.Addr, "error", err)
		m.fallback = memory.New(time.Minute)
		ctx.RegisterService(store.ServiceName, store.Store(m.fallback))
		return nil
	}

	m.store = s
	ctx.RegisterService(store.ServiceName, store.Store(s))
	m.logger.Info("redis session store connected", "addr", opts.Addr, "db", opts.DB)
	return nil
}

func (m *Module) options() (*goredis.Options, error) {
	var opts *goredis.Options
	if m.config.URL != "" {
		parsed, err := goredis.ParseURL(m.config.URL)
		if err != nil {
			return nil, fmt.Errorf("redis store: parse url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:     m.config.Addr,
			Password: m.config.Password,
			DB:       m.config.DB,
		}
	}
	opts.PoolSize = m.config.PoolSize
	opts.MinIdleConns = m.config.MinIdleConns
	opts.MaxRetries = m.config.MaxRetries
	opts.DialTimeout = m.config.DialTimeout
	opts.ReadTimeout = m.config.ReadTimeout
	opts.WriteTimeout = m.config.WriteTimeout
	return opts, nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store != nil {
		return m.store.Close()
	}
	if m.fallback != nil {
		m.fallback.Flush()
	}
	return nil
}

// Store is a store.Store backed by a go-redis client.
type Store struct {
	client    *goredis.Client
	scanCount int64
}

// New wraps an existing client. scanCount is the SCAN COUNT hint.
func New(client *goredis.Client, scanCount int64) *Store {
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Store{client: client, scanCount: scanCount}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("redis store: %s %s: %w: %w", op, key, store.ErrUnavailable, err)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", strings.Join(keys, ","), err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, value)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable("rpush", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, key string) ([][]byte, error) {
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, unavailable("lrange", key, err)
	}
	out := make([][]byte, len(items))
	for i, it := range items {
		out[i] = []byte(it)
	}
	return out, nil
}

func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable("incr", key, err)
	}
	return incr.Val(), nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = s.client.Expire(ctx, key, ttl).Err()
	} else {
		err = s.client.Persist(ctx, key).Err()
	}
	if err != nil {
		return unavailable("expire", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, matchPrefix(prefix), s.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan", prefix, err)
	}
	return keys, nil
}

func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("del", prefix, err)
	}
	return int(n), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

// matchPrefix builds a SCAN MATCH pattern that treats prefix literally.
func matchPrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}
