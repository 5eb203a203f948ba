// Package vectorstore stores chunk embeddings in a named index, partitioned by
// namespace, and answers nearest-neighbour queries.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/hyperjump/insurepal/internal/config"
	"github.com/hyperjump/insurepal/internal/models"
	"go.uber.org/zap"
)

// Store is a vector index.
type Store interface {
	// EnsureIndex creates the configured index if it does not exist yet.
	// Calling it again is a no-op.
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]*Match, error)
	Stats(ctx context.Context) (*Stats, error)
	Type() string
	Close() error
}

// Record is one vector to upsert. Metadata values must be strings, numbers or bools.
type Record struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Match is a query hit.
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Text returns the chunk text stored in the match metadata.
func (m *Match) Text() string {
	s, _ := m.Metadata[models.MetaText].(string)
	return s
}

// FileName returns the source file name stored in the match metadata.
func (m *Match) FileName() string {
	s, _ := m.Metadata[models.MetaFileName].(string)
	return s
}

// Stats describes the index contents.
type Stats struct {
	IndexName    string           `json:"index_name"`
	Dimension    int              `json:"dimension"`
	TotalVectors int64            `json:"total_vectors"`
	Namespaces   map[string]int64 `json:"namespaces,omitempty"`
}

// Type names.
const (
	TypePinecone = "pinecone"
	TypeMemory   = "memory"
)

// upsertBatchSize caps the number of records sent in one upsert call.
const upsertBatchSize = 100

// New returns the store selected by cfg.Type. It does not contact the
// backend; call EnsureIndex before use.
func New(cfg config.VectorStoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case TypePinecone, "":
		return NewPineconeStore(cfg, WithLogger(logger)), nil
	case TypeMemory:
		return NewMemoryStore(cfg.IndexName, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s (supported: pinecone, memory)", cfg.Type)
	}
}

// Batches splits records into slices of at most size records.
func Batches(records []Record, size int) [][]Record {
	if size <= 0 {
		size = upsertBatchSize
	}
	var out [][]Record
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}
