// Package rag answers questions over one namespace of the vector store:
// retrieve the closest chunks, build a prompt from them and generate.
package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/insurepal/internal/config"
	"github.com/hyperjump/insurepal/internal/embedding"
	"github.com/hyperjump/insurepal/internal/keyword"
	"github.com/hyperjump/insurepal/internal/llm"
	"github.com/hyperjump/insurepal/internal/models"
	"github.com/hyperjump/insurepal/internal/storage"
	"github.com/hyperjump/insurepal/internal/vectorstore"
	"github.com/hyperjump/insurepal/pkg/utils"
	"go.uber.org/zap"
)

// minHybridCandidates is the smallest candidate pool fetched from each
// retriever before fusion.
const minHybridCandidates = 10

// QueryEngine answers questions against one namespace. It holds no state
// between queries and is cheap to build per request.
type QueryEngine struct {
	store          vectorstore.Store
	embedder       embedding.Embedder
	generator      llm.Generator
	namespace      string
	topK           int
	keywordIndex   keyword.Index
	keywordOpts    *keyword.SearchOptions
	ledger         storage.Ledger
	keywordWeight  float64
	semanticWeight float64
	logger         *zap.Logger
}

// Option configures a QueryEngine.
type Option func(*QueryEngine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *QueryEngine) { e.logger = l }
}

// WithHybrid fuses keyword hits from kw into retrieval. ledger resolves the
// text of chunks that only the keyword index found.
func WithHybrid(kw keyword.Index, ledger storage.Ledger) Option {
	return func(e *QueryEngine) {
		e.keywordIndex = kw
		e.ledger = ledger
	}
}

// NewQueryEngine returns an engine over namespace using cfg's top-k and fusion weights.
func NewQueryEngine(store vectorstore.Store, embedder embedding.Embedder, generator llm.Generator,
	namespace string, cfg config.RetrievalConfig, opts ...Option) *QueryEngine {
	e := &QueryEngine{
		store:          store,
		embedder:       embedder,
		generator:      generator,
		namespace:      namespace,
		topK:           cfg.TopK,
		keywordWeight:  cfg.KeywordWeight,
		semanticWeight: cfg.SemanticWeight,
		logger:         zap.NewNop(),
	}
	if cfg.Fuzzy || cfg.TitleBoost > 1 {
		e.keywordOpts = &keyword.SearchOptions{
			TitleBoost:   cfg.TitleBoost,
			FuzzyEnabled: cfg.Fuzzy,
			Fuzziness:    cfg.Fuzziness,
		}
	}
	if e.topK <= 0 {
		e.topK = 2
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query retrieves context for question and generates an answer. When nothing
// is retrieved, or the generator returns only whitespace, the answer is
// models.EmptyResponse and the generator is not consulted for the former.
func (e *QueryEngine) Query(ctx context.Context, question string) (*models.QueryResult, error) {
	sources, err := e.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	result := &models.QueryResult{Sources: sources}
	if len(sources) == 0 {
		result.Answer = models.EmptyResponse
		e.logger.Debug("no context retrieved", zap.String("namespace", e.namespace))
		return result, nil
	}

	prompt := BuildPrompt(result.ContextTexts(), question)
	answer, err := e.generator.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = models.EmptyResponse
	}
	result.Answer = answer
	for i, s := range sources {
		e.logger.Debug("answer source",
			zap.Int("rank", i+1),
			zap.String("chunk_id", s.ChunkID),
			zap.String("file_name", s.FileName),
			zap.Float64("score", s.Score),
			zap.String("text", utils.Truncate(s.Text, 80)))
	}
	return result, nil
}

func (e *QueryEngine) retrieve(ctx context.Context, question string) ([]*models.SourceNode, error) {
	if e.keywordIndex == nil {
		vec, err := e.embedder.Embed(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
		matches, err := e.store.Query(ctx, e.namespace, vec, e.topK)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		sources := make([]*models.SourceNode, 0, len(matches))
		for _, m := range matches {
			sources = append(sources, &models.SourceNode{
				ChunkID:       m.ID,
				FileName:      m.FileName(),
				Text:          m.Text(),
				Score:         m.Score,
				SemanticScore: m.Score,
			})
		}
		return sources, nil
	}
	return e.retrieveHybrid(ctx, question)
}

// retrieveHybrid runs keyword and semantic retrieval concurrently, fuses the
// normalized scores and keeps the top-k chunks whose text can be resolved.
func (e *QueryEngine) retrieveHybrid(ctx context.Context, question string) ([]*models.SourceNode, error) {
	candidates := e.topK * 5
	if candidates < minHybridCandidates {
		candidates = minHybridCandidates
	}

	var (
		keywordResults []*keyword.Result
		matches        []*vectorstore.Match
		errChan        = make(chan error, 2)
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results, err := e.keywordIndex.Search(ctx, e.namespace, question, candidates, e.keywordOpts)
		if err != nil {
			errChan <- fmt.Errorf("keyword search failed: %w", err)
			return
		}
		keywordResults = results
	}()
	go func() {
		defer wg.Done()
		vec, err := e.embedder.Embed(ctx, question)
		if err != nil {
			errChan <- fmt.Errorf("embedding failed: %w", err)
			return
		}
		results, err := e.store.Query(ctx, e.namespace, vec, candidates)
		if err != nil {
			errChan <- fmt.Errorf("vector search failed: %w", err)
			return
		}
		matches = results
	}()
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	byID := make(map[string]*vectorstore.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}
	fused := Fuse(NormalizeKeywordScores(keywordResults), SemanticScores(matches), e.keywordWeight, e.semanticWeight)

	sources := make([]*models.SourceNode, 0, e.topK)
	for _, f := range fused {
		if len(sources) == e.topK {
			break
		}
		node := &models.SourceNode{
			ChunkID:       f.ChunkID,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
		}
		if m, ok := byID[f.ChunkID]; ok {
			node.Text, node.FileName = m.Text(), m.FileName()
		} else if e.ledger != nil {
			chunk, err := e.ledger.GetChunk(ctx, f.ChunkID)
			if err != nil {
				e.logger.Debug("keyword hit without ledger chunk", zap.String("chunk_id", f.ChunkID), zap.Error(err))
				continue
			}
			node.Text, node.FileName = chunk.Text, chunk.FileName
		} else {
			continue
		}
		sources = append(sources, node)
	}
	return sources, nil
}
