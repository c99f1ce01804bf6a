// Package retrievaltest provides test doubles for the retrieval package.
package retrievaltest

import (
	"context"
	"sync"

	"github.com/flemzord/policychat/internal/retrieval"
)

// SearchCall records one Search invocation.
type SearchCall struct {
	Query string
	Limit int
}

// MockRetriever is a configurable retrieval.Retriever that records calls.
type MockRetriever struct {
	SearchFunc func(ctx context.Context, query string, limit int) ([]retrieval.Passage, error)

	mu    sync.Mutex
	calls []SearchCall
}

// Search records the call and delegates to SearchFunc. With no SearchFunc
// it returns limit passages at distance 0.5.
func (m *MockRetriever) Search(ctx context.Context, query string, limit int) ([]retrieval.Passage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SearchCall{Query: query, Limit: limit})
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	out := make([]retrieval.Passage, limit)
	for i := range out {
		out[i] = retrieval.Passage{Content: "policy passage", Score: 0.5}
	}
	return out, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockRetriever) Calls() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]SearchCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

var _ retrieval.Retriever = (*MockRetriever)(nil)
