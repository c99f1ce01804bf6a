// Package store defines the key-value contract that holds per-session
// state: metadata, conversation history and cached answers. Backends live
// under modules/store and register themselves with the core registry.
package store

import (
	"context"
	"time"
)

// Store is a key-value store with per-key expiry. A ttl of zero means the
// key does not expire. Implementations must be safe for concurrent use.
//
// Every method fails with an error wrapping ErrUnavailable when the
// backend cannot be reached.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value at key, replacing any previous value and expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Append pushes value to the tail of the list at key, creating it if
	// needed, and resets the list expiry to ttl.
	Append(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// List returns every element of the list at key in insertion order.
	// A missing list yields an empty slice and no error.
	List(ctx context.Context, key string) ([][]byte, error)

	// Incr atomically adds one to the integer at key (missing counts as
	// zero), resets its expiry to ttl and returns the new value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Expire resets the expiry of key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Keys returns every live key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// DeleteByPrefix removes every key starting with prefix and reports
	// how many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// ServiceName is the AppContext service under which the active store
// module publishes itself.
const ServiceName = "store"
