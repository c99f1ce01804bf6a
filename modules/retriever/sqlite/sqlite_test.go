package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/retrieval"
)

var corpus = []retrieval.Document{
	{ID: "p#0", Source: "policy", Content: "We use cookies and similar tracking technologies to remember your preferences."},
	{ID: "p#1", Source: "policy", Content: "You may request deletion of your personal data by contacting our privacy team."},
	{ID: "p#2", Source: "policy", Content: "Data is retained for as long as your account remains active."},
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Index(context.Background(), corpus); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestIndex_SearchRanksRelevantFirst(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	got, err := idx.Search(context.Background(), "What are cookies?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].Content != corpus[0].Content {
		t.Fatalf("Search = %+v, want cookie passage first", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score < got[i-1].Score {
			t.Errorf("results not ordered by distance: %+v", got)
		}
	}
	if got[0].Score <= 0 || got[0].Score > 2 {
		t.Errorf("distance out of range: %v", got[0].Score)
	}
}

func TestIndex_SearchLimitAndEmpty(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	ctx := context.Background()

	got, err := idx.Search(ctx, "data your", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("limit 1 = %d results, err %v", len(got), err)
	}
	if got, err := idx.Search(ctx, "?!", 3); err != nil || got != nil {
		t.Errorf("punctuation-only query = %v, %v", got, err)
	}
	if got, err := idx.Search(ctx, "blockchain", 3); err != nil || len(got) != 0 {
		t.Errorf("no-match query = %v, %v", got, err)
	}
}

func TestIndex_ReplaceAndCount(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, []retrieval.Document{{ID: "p#0", Content: "Replaced text about newsletters."}}); err != nil {
		t.Fatal(err)
	}
	n, err := idx.Count(ctx)
	if err != nil || n != len(corpus) {
		t.Errorf("Count = %d, %v, want %d", n, err, len(corpus))
	}
	if got, _ := idx.Search(ctx, "cookies", 3); len(got) != 0 {
		t.Errorf("stale content still indexed: %+v", got)
	}
}

func TestIndex_ClosedFailsWithErrRetrieval(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	_ = idx.Close()
	if _, err := idx.Search(context.Background(), "cookies", 3); !errors.Is(err, retrieval.ErrRetrieval) {
		t.Fatalf("error = %v, want ErrRetrieval", err)
	}
}

func TestMatchExpression(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"What are cookies?": `"what" OR "are" OR "cookies"`,
		`drop "table"; --`:  `"drop" OR "table"`,
		"cookies cookies":   `"cookies"`,
		"":                  "",
	}
	for in, want := range tests {
		if got := matchExpression(in); got != want {
			t.Errorf("matchExpression(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestModule_Provision(t *testing.T) {
	dir := t.TempDir()
	ctx := core.NewAppContext(slog.Default(), dir)
	m := &Module{}
	if err := m.Provision(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if m.config.Path != filepath.Join(dir, defaultDBFile) {
		t.Errorf("path = %q", m.config.Path)
	}
	if _, ok := core.Service[retrieval.Retriever](ctx, retrieval.ServiceName); !ok {
		t.Error("retriever service not registered")
	}
}
