// Package embedding turns text into vectors through a remote provider or a
// deterministic local hasher, with an LRU cache in front of either.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/insurepal/internal/config"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New returns the embedder selected by cfg.Type, wrapped in a cache of
// cfg.CacheSize entries. dimensions is the vector size the index expects.
func New(cfg config.ProviderConfig, dimensions int) (Embedder, error) {
	var inner Embedder
	switch cfg.Type {
	case "openai", "":
		inner = NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.EmbeddingModel, dimensions,
			WithTimeout(cfg.TimeoutSecs))
	case "offline":
		inner = NewHashEmbedder(dimensions)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	if cfg.CacheSize <= 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, NewEmbeddingCache(cfg.CacheSize)), nil
}
