package storetest

import (
	"context"
	"sync/atomic"

	"github.com/flemzord/policychat/internal/store"
)

// ScanCounter wraps a store and counts the calls that walk the keyspace.
type ScanCounter struct {
	store.Store
	scans atomic.Int64
}

// NewScanCounter wraps inner.
func NewScanCounter(inner store.Store) *ScanCounter {
	return &ScanCounter{Store: inner}
}

// Scans returns the number of Keys and DeleteByPrefix calls so far.
func (s *ScanCounter) Scans() int64 { return s.scans.Load() }

func (s *ScanCounter) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.scans.Add(1)
	return s.Store.Keys(ctx, prefix)
}

func (s *ScanCounter) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	s.scans.Add(1)
	return s.Store.DeleteByPrefix(ctx, prefix)
}
