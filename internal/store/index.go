package store

import (
	"context"
	"fmt"
)

// CacheDigests returns the distinct digests recorded in a session's cache
// index, in first-stored order. Digests whose entries already expired may
// still be listed.
func CacheDigests(ctx context.Context, s Store, sessionID string) ([]string, error) {
	items, err := s.List(ctx, CacheIndexKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read cache index of %s: %w", sessionID, err)
	}
	seen := make(map[string]bool, len(items))
	digests := make([]string, 0, len(items))
	for _, it := range items {
		d := string(it)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		digests = append(digests, d)
	}
	return digests, nil
}

// CacheKeys returns the keys of every indexed cache entry of a session.
func CacheKeys(ctx context.Context, s Store, sessionID string) ([]string, error) {
	digests, err := CacheDigests(ctx, s, sessionID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(digests))
	for i, d := range digests {
		keys[i] = CacheKey(sessionID, d)
	}
	return keys, nil
}
