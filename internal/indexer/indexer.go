// Package indexer turns extracted documents into chunk vectors: it chunks,
// embeds and upserts them, and records the upload in the ledger and keyword index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/insurepal/internal/apperr"
	"github.com/hyperjump/insurepal/internal/config"
	"github.com/hyperjump/insurepal/internal/embedding"
	"github.com/hyperjump/insurepal/internal/extract"
	"github.com/hyperjump/insurepal/internal/keyword"
	"github.com/hyperjump/insurepal/internal/models"
	"github.com/hyperjump/insurepal/internal/storage"
	"github.com/hyperjump/insurepal/internal/vectorstore"
	"go.uber.org/zap"
)

// ErrNoText is returned when no extracted segment contains indexable text.
var ErrNoText = errors.New("document has no indexable text")

// Indexer indexes uploads into the vector store and, when configured, the
// upload ledger and keyword index.
type Indexer struct {
	store        vectorstore.Store
	embedder     embedding.Embedder
	ledger       storage.Ledger
	keywordIndex keyword.Index
	chunker      *Chunker
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLedger records every upload and its chunks in l.
func WithLedger(l storage.Ledger) IndexerOption {
	return func(idx *Indexer) { idx.ledger = l }
}

// WithKeywordIndex also indexes chunk text for keyword search.
func WithKeywordIndex(k keyword.Index) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// NewIndexer creates an indexer that chunks with cfg's size and overlap.
func NewIndexer(store vectorstore.Store, embedder embedding.Embedder, cfg config.RetrievalConfig, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:    store,
		embedder: embedder,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest chunks, embeds and upserts docs into namespace as one new upload of
// fileName, then records it. Nothing is rolled back if a later step fails.
func (idx *Indexer) Ingest(ctx context.Context, namespace, fileName string, size int64, docs []*models.Document) (*models.UploadRecord, error) {
	rec := &models.UploadRecord{
		ID:        uuid.New().String(),
		Namespace: namespace,
		FileName:  fileName,
		Extension: extract.Extension(fileName),
		SizeBytes: size,
		Segments:  len(docs),
		CreatedAt: time.Now().UTC(),
	}

	chunks, segments := idx.chunkDocuments(rec, docs)
	if len(chunks) == 0 {
		return nil, apperr.Extraction("ingest", ErrNoText)
	}
	rec.Chunks = len(chunks)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	records := make([]vectorstore.Record, len(chunks))
	for i, ch := range chunks {
		ch.Embedding = embeddings[i]
		records[i] = vectorstore.Record{ID: ch.ID, Values: ch.Embedding, Metadata: chunkMetadata(ch, docs[segments[i]])}
	}
	if err := idx.store.Upsert(ctx, namespace, records); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	idx.logger.Debug("indexer upserted vectors",
		zap.String("document_id", rec.ID),
		zap.String("namespace", namespace),
		zap.Int("chunks", len(chunks)))

	if idx.ledger != nil {
		if err := idx.ledger.CreateUpload(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record upload: %w", err)
		}
		if err := idx.ledger.BatchCreateChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("failed to record chunks: %w", err)
		}
	}
	if idx.keywordIndex != nil {
		kc := make([]keyword.Chunk, len(chunks))
		for i, ch := range chunks {
			kc[i] = keyword.Chunk{ID: ch.ID, Namespace: namespace, FileName: fileName, Text: ch.Text}
		}
		if err := idx.keywordIndex.Index(ctx, kc); err != nil {
			return nil, fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return rec, nil
}

// chunkDocuments preprocesses and chunks every segment, numbering chunks
// across segments. segments[i] is the index in docs that chunks[i] came from.
func (idx *Indexer) chunkDocuments(rec *models.UploadRecord, docs []*models.Document) (chunks []*models.Chunk, segments []int) {
	for seg, doc := range docs {
		text := Preprocess(doc.Text)
		if text == "" {
			continue
		}
		for _, ch := range idx.chunker.Chunk(rec.ID, len(chunks), text) {
			ch.Namespace = rec.Namespace
			ch.FileName = rec.FileName
			ch.CreatedAt = rec.CreatedAt
			chunks = append(chunks, ch)
			segments = append(segments, seg)
		}
	}
	return chunks, segments
}

// chunkMetadata is stored next to each vector. It carries the chunk text so
// queries need no second lookup, plus the segment's string provenance keys.
func chunkMetadata(ch *models.Chunk, doc *models.Document) map[string]interface{} {
	meta := map[string]interface{}{}
	for k, v := range doc.Metadata {
		if s, ok := v.(string); ok && s != "" {
			meta[k] = s
		}
	}
	meta[models.MetaText] = ch.Text
	meta[models.MetaFileName] = ch.FileName
	meta[models.MetaDocumentID] = ch.DocumentID
	meta[models.MetaChunkIndex] = ch.Index
	return meta
}
