package redis

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultAddr         = "localhost:6379"
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultMaxRetries   = 3
	defaultDialTimeout  = 5 * time.Second
	defaultIOTimeout    = 3 * time.Second
	defaultScanCount    = 100
)

// Config holds the Redis store configuration.
type Config struct {
	// URL is a redis:// or rediss:// connection string. Takes precedence
	// over Addr, Password and DB.
	URL string `yaml:"url"`

	// Addr is host:port. Defaults to localhost:6379.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ScanCount is the COUNT hint used when walking keys by prefix.
	ScanCount int64 `yaml:"scan_count"`

	// FallbackMemory serves from an in-process store when Redis cannot be
	// reached at start-up instead of failing.
	FallbackMemory bool `yaml:"fallback_memory"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.PoolSize == 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = defaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultIOTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultIOTimeout
	}
	if c.ScanCount == 0 {
		c.ScanCount = defaultScanCount
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.DB < 0 {
		errs = append(errs, fmt.Errorf("redis store: db must be non-negative, got %d", c.DB))
	}
	if c.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("redis store: pool_size must be non-negative, got %d", c.PoolSize))
	}
	if c.URL == "" && c.Addr == "" {
		errs = append(errs, errors.New("redis store: url or addr is required"))
	}
	return errors.Join(errs...)
}
