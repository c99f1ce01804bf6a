// Package storetest provides a conformance suite and failure doubles for
// store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/policychat/internal/store"
)

// Harness describes a backend under test.
type Harness struct {
	// New returns an empty store. Cleanup is registered on t.
	New func(t *testing.T) store.Store

	// Advance moves the backend clock forward. When nil the suite sleeps.
	Advance func(d time.Duration)
}

func (h Harness) advance(d time.Duration) {
	if h.Advance != nil {
		h.Advance(d)
		return
	}
	time.Sleep(d)
}

// Run exercises the store.Store contract against the harness.
func Run(t *testing.T, h Harness) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := h.New(t)
		_, err := s.Get(context.Background(), "nope")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s := h.New(t)
		ctx := context.Background()
		mustSet(t, s, "k", "v1", 0)
		mustSet(t, s, "k", "v2", 0)
		if got := mustGet(t, s, "k"); got != "v2" {
			t.Errorf("Get = %q, want v2", got)
		}
		if err := s.Delete(ctx, "k", "never-existed"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		s := h.New(t)
		ctx := context.Background()
		mustSet(t, s, "short", "v", 100*time.Millisecond)
		mustSet(t, s, "long", "v", time.Hour)
		h.advance(300 * time.Millisecond)
		if _, err := s.Get(ctx, "short"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expired key still readable: %v", err)
		}
		if got := mustGet(t, s, "long"); got != "v" {
			t.Errorf("long-lived key = %q", got)
		}
	})

	t.Run("ExpireRefreshes", func(t *testing.T) {
		s := h.New(t)
		ctx := context.Background()
		mustSet(t, s, "k", "v", 200*time.Millisecond)
		if err := s.Expire(ctx, "k", time.Hour); err != nil {
			t.Fatalf("Expire: %v", err)
		}
		if err := s.Expire(ctx, "missing", time.Hour); err != nil {
			t.Fatalf("Expire(missing): %v", err)
		}
		h.advance(400 * time.Millisecond)
		if got := mustGet(t, s, "k"); got != "v" {
			t.Errorf("refreshed key = %q", got)
		}
	})

	t.Run("AppendList", func(t *testing.T) {
		s := h.New(t)
		ctx := context.Background()
		empty, err := s.List(ctx, "list")
		if err != nil || len(empty) != 0 {
			t.Fatalf("List(missing) = %v, %v", empty, err)
		}
		for _, v := range []string{"a", "b", "c"} {
			if err := s.Append(ctx, "list", []byte(v), time.Hour); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		items, err := s.List(ctx, "list")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got := make([]string, len(items))
		for i, it := range items {
			got[i] = string(it)
		}
		if !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("List = %v", got)
		}
	})

	t.Run("IncrConcurrent", func(t *testing.T) {
		s := h.New(t)
		ctx := context.Background()
		const n = 50
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Incr(ctx, "counter", time.Hour); err != nil {
					t.Errorf("Incr: %v", err)
				}
			}()
		}
		wg.Wait()
		got, err := s.Incr(ctx, "counter", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if got != n+1 {
			t.Errorf("counter = %d, want %d", got, n+1)
		}
	})

	t.Run("IncrAfterSet", func(t *testing.T) {
		s := h.New(t)
		mustSet(t, s, "counter", "0", time.Hour)
		got, err := s.Incr(context.Background(), "counter", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if got != 1 {
			t.Errorf("Incr after Set(0) = %d, want 1", got)
		}
	})

	t.Run("PrefixOps", func(t *testing.T) {
		s := h.New(t)
		ctx := context.Background()
		for i := range 3 {
			mustSet(t, s, fmt.Sprintf("cache:a:%d", i), "v", time.Hour)
		}
		mustSet(t, s, "cache:b:0", "v", time.Hour)
		if err := s.Append(ctx, "cache:a:list", []byte("x"), time.Hour); err != nil {
			t.Fatal(err)
		}

		keys, err := s.Keys(ctx, "cache:a:")
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 4 {
			t.Errorf("Keys(cache:a:) = %v, want 4 keys", keys)
		}

		n, err := s.DeleteByPrefix(ctx, "cache:a:")
		if err != nil {
			t.Fatal(err)
		}
		if n != 4 {
			t.Errorf("DeleteByPrefix removed %d, want 4", n)
		}
		if n, _ := s.DeleteByPrefix(ctx, "cache:a:"); n != 0 {
			t.Errorf("second DeleteByPrefix removed %d, want 0", n)
		}
		if got := mustGet(t, s, "cache:b:0"); got != "v" {
			t.Errorf("unrelated key removed")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := h.New(t).Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func mustSet(t *testing.T, s store.Store, key, value string, ttl time.Duration) {
	t.Helper()
	if err := s.Set(context.Background(), key, []byte(value), ttl); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

func mustGet(t *testing.T, s store.Store, key string) string {
	t.Helper()
	v, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return string(v)
}
