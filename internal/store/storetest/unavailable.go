package storetest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flemzord/policychat/internal/store"
)

// Unavailable wraps a store and fails every call with store.ErrUnavailable
// while Down is set.
type Unavailable struct {
	store.Store
	Down  atomic.Bool
	Calls atomic.Int64
}

// NewUnavailable wraps inner. The wrapper starts in the down state.
func NewUnavailable(inner store.Store) *Unavailable {
	u := &Unavailable{Store: inner}
	u.Down.Store(true)
	return u
}

func (u *Unavailable) fail() error {
	u.Calls.Add(1)
	if u.Down.Load() {
		return store.ErrUnavailable
	}
	return nil
}

func (u *Unavailable) Get(ctx context.Context, key string) ([]byte, error) {
	if err := u.fail(); err != nil {
		return nil, err
	}
	return u.Store.Get(ctx, key)
}

func (u *Unavailable) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := u.fail(); err != nil {
		return err
	}
	return u.Store.Set(ctx, key, value, ttl)
}

func (u *Unavailable) Delete(ctx context.Context, keys ...string) error {
	if err := u.fail(); err != nil {
		return err
	}
	return u.Store.Delete(ctx, keys...)
}

func (u *Unavailable) Append(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := u.fail(); err != nil {
		return err
	}
	return u.Store.Append(ctx, key, value, ttl)
}

func (u *Unavailable) List(ctx context.Context, key string) ([][]byte, error) {
	if err := u.fail(); err != nil {
		return nil, err
	}
	return u.Store.List(ctx, key)
}

func (u *Unavailable) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := u.fail(); err != nil {
		return 0, err
	}
	return u.Store.Incr(ctx, key, ttl)
}

func (u *Unavailable) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := u.fail(); err != nil {
		return err
	}
	return u.Store.Expire(ctx, key, ttl)
}

func (u *Unavailable) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := u.fail(); err != nil {
		return nil, err
	}
	return u.Store.Keys(ctx, prefix)
}

func (u *Unavailable) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if err := u.fail(); err != nil {
		return 0, err
	}
	return u.Store.DeleteByPrefix(ctx, prefix)
}

func (u *Unavailable) Ping(ctx context.Context) error {
	if err := u.fail(); err != nil {
		return err
	}
	return u.Store.Ping(ctx)
}

var _ store.Store = (*Unavailable)(nil)
