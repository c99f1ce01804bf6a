// Package bleve implements a passage retriever on a Bleve full-text index.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/retrieval"
	"gopkg.in/yaml.v3"
)

const (
	defaultIndexDir  = "passages.bleve"
	defaultBatchSize = 500
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
	_ core.Stopper        = (*Module)(nil)
)

// Config holds the Bleve retriever configuration.
type Config struct {
	// Path is the index directory. Defaults to {DataDir}/passages.bleve.
	Path string `yaml:"path"`

	// BatchSize caps documents per index batch. Defaults to 500.
	BatchSize int `yaml:"batch_size"`
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
}

// Module registers the Bleve retriever as "retriever.bleve".
type Module struct {
	config Config
	index  *Index
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "retriever.bleve",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("bleve retriever: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultIndexDir)
	}
	idx, err := Open(m.config, ctx.Logger)
	if err != nil {
		return err
	}
	m.index = idx
	ctx.RegisterService(retrieval.ServiceName, retrieval.Retriever(idx))
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.index != nil {
		return m.index.Close()
	}
	return nil
}

// Index wraps a bleve.Index holding policy passages.
type Index struct {
	index     bleve.Index
	batchSize int
}

type passageDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Open opens the index at cfg.Path, creating it when absent.
func Open(cfg Config, logger *slog.Logger) (*Index, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	idx, err := bleve.Open(cfg.Path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); mkErr != nil {
			return nil, fmt.Errorf("bleve retriever: create directory: %w", mkErr)
		}
		idx, err = bleve.New(cfg.Path, buildMapping())
		if err == nil {
			logger.Info("bleve index created", "path", cfg.Path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bleve retriever: open %s: %w", cfg.Path, err)
	}
	return &Index{index: idx, batchSize: cfg.BatchSize}, nil
}

// NewMemOnly returns an in-memory index.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve retriever: create in-memory index: %w", err)
	}
	return &Index{index: idx, batchSize: defaultBatchSize}, nil
}

func buildMapping() mapping.IndexMapping {
	content := bleve.NewTextFieldMapping()
	content.Store = true
	content.Analyzer = "standard"

	source := bleve.NewKeywordFieldMapping()
	source.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("source", source)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Close closes the underlying index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Index adds or replaces documents in batches.
func (x *Index) Index(ctx context.Context, docs []retrieval.Document) error {
	batch := x.index.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(d.ID, passageDoc{Content: d.Content, Source: d.Source}); err != nil {
			return fmt.Errorf("bleve retriever: index %s: %w", d.ID, err)
		}
		if batch.Size() >= x.batchSize {
			if err := x.index.Batch(batch); err != nil {
				return fmt.Errorf("bleve retriever: flush batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("bleve retriever: flush batch: %w", err)
		}
	}
	return nil
}

// Count returns the number of indexed passages.
func (x *Index) Count(_ context.Context) (int, error) {
	n, err := x.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("bleve retriever: count: %w", err)
	}
	return int(n), nil
}

// Search runs a match query and converts Bleve relevance to distance.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]retrieval.Passage, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"content", "source"}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: bleve: %w", retrieval.ErrRetrieval, err)
	}

	out := make([]retrieval.Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		content, _ := hit.Fields["content"].(string)
		source, _ := hit.Fields["source"].(string)
		out = append(out, retrieval.Passage{
			Content: content,
			Source:  source,
			Score:   retrieval.DistanceFromRelevance(hit.Score),
		})
	}
	return out, nil
}
