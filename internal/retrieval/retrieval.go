// Package retrieval defines the document search contract used to ground
// answers in the policy corpus, plus the minimal ingestion helpers the
// index-backed retrievers share.
package retrieval

import (
	"context"
	"errors"
)

// ErrRetrieval wraps every search backend failure.
var ErrRetrieval = errors.New("retrieval: search failed")

// ServiceName is the AppContext service under which the active retriever
// module publishes itself.
const ServiceName = "retriever"

// Passage is one search result. Score is a distance: lower is more
// relevant, and callers filter on a cutoff.
type Passage struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// Retriever searches the corpus. Results are ordered best first.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Passage, error)
}

// Document is a unit of ingested text.
type Document struct {
	ID      string
	Content string
	Source  string
}

// Indexer is implemented by retrievers that can ingest documents.
type Indexer interface {
	Index(ctx context.Context, docs []Document) error
	Count(ctx context.Context) (int, error)
}

// Relevant keeps the passages whose distance is strictly below cutoff,
// preserving order.
func Relevant(passages []Passage, cutoff float64) []Passage {
	out := passages[:0:0]
	for _, p := range passages {
		if p.Score < cutoff {
			out = append(out, p)
		}
	}
	return out
}

// DistanceFromRelevance maps a non-negative relevance score, where higher
// is better, onto a distance in (0, 2] where lower is better. A relevance
// of 1/3 lands on the default 1.5 cutoff.
func DistanceFromRelevance(r float64) float64 {
	if r < 0 {
		r = 0
	}
	return 2 / (1 + r)
}
