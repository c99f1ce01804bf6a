// Package sqlite implements a passage retriever on SQLite FTS5 using
// modernc.org/sqlite (pure Go, no CGO). Ranking is FTS5's bm25, converted
// to a distance so lower scores are better.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/retrieval"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Interface guards.
var (
	_ retrieval.Retriever = (*Index)(nil)
	_ retrieval.Indexer   = (*Index)(nil)
	_ core.Configurable   = (*Module)(nil)
	_ core.Provisioner    = (*Module)(nil)
	_ core.Validator      = (*Module)(nil)
	_ core.Stopper        = (*Module)(nil)
)

// Module registers the FTS5 retriever as "retriever.sqlite".
type Module struct {
	config Config
	logger *slog.Logger
	index  *Index
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "retriever.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite retriever: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}
	idx, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.index = idx

	ctx.RegisterService(retrieval.ServiceName, retrieval.Retriever(idx))
	m.logger.Info("sqlite retriever provisioned", "path", m.config.Path, "wal", m.config.walEnabled())
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	var n int
	if err := m.index.db.QueryRowContext(context.Background(), "SELECT count(*) FROM passages_fts").Scan(&n); err != nil {
		return fmt.Errorf("sqlite retriever: FTS5 not available: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.index != nil {
		return m.index.Close()
	}
	return nil
}

// Index is an FTS5-backed retriever and indexer.
type Index struct {
	db *sql.DB
}

// Open opens or creates the passage database described by cfg.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	cfg.defaults()
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite retriever: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite retriever: open %s: %w", cfg.Path, err)
	}
	// One connection so PRAGMAs apply to every statement.
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite retriever: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite retriever: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Index stores or replaces documents in one transaction.
func (x *Index) Index(ctx context.Context, docs []retrieval.Document) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite retriever: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (id, content, source) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, source = excluded.source`)
	if err != nil {
		return fmt.Errorf("sqlite retriever: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, d.Source); err != nil {
			return fmt.Errorf("sqlite retriever: index %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite retriever: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored passages.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite retriever: count: %w", err)
	}
	return n, nil
}

// Search returns up to limit passages matching any term of query.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]retrieval.Passage, error) {
	match := matchExpression(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT p.content, p.source, bm25(passages_fts) AS rank
		FROM passages_fts
		JOIN passages p ON p.rowid = passages_fts.rowid
		WHERE passages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %w", retrieval.ErrRetrieval, err)
	}
	defer func() { _ = rows.Close() }()

	var out []retrieval.Passage
	for rows.Next() {
		var (
			p    retrieval.Passage
			rank float64
		)
		if err := rows.Scan(&p.Content, &p.Source, &rank); err != nil {
			return nil, fmt.Errorf("%w: sqlite scan: %w", retrieval.ErrRetrieval, err)
		}
		// bm25() is negative, more negative meaning a better match.
		p.Score = retrieval.DistanceFromRelevance(-rank)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sqlite rows: %w", retrieval.ErrRetrieval, err)
	}
	return out, nil
}

// matchExpression turns free text into an FTS5 query that ORs the quoted
// terms, so punctuation in user input cannot break the MATCH syntax.
func matchExpression(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
