// Package server provides the HTTP API for InsurePal.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/insurepal/internal/config"
	"github.com/hyperjump/insurepal/internal/embedding"
	"github.com/hyperjump/insurepal/internal/extract"
	"github.com/hyperjump/insurepal/internal/indexer"
	"github.com/hyperjump/insurepal/internal/keyword"
	"github.com/hyperjump/insurepal/internal/llm"
	"github.com/hyperjump/insurepal/internal/storage"
	"github.com/hyperjump/insurepal/internal/vectorstore"
	"go.uber.org/zap"
)

// Server is the HTTP server for the InsurePal API.
type Server struct {
	cfg          *config.Config
	store        vectorstore.Store
	embedder     embedding.Embedder
	generator    llm.Generator
	ledger       storage.Ledger
	keywordIndex keyword.Index
	extractor    *extract.Extractor
	indexer      *indexer.Indexer
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. ledger and
// keywordIndex may be nil; the keyword index is only used when
// cfg.Retrieval.Hybrid is set.
func NewServer(
	cfg *config.Config,
	store vectorstore.Store,
	embedder embedding.Embedder,
	generator llm.Generator,
	ledger storage.Ledger,
	keywordIndex keyword.Index,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Retrieval.Hybrid {
		keywordIndex = nil
	}
	idxOpts := []indexer.IndexerOption{indexer.WithLogger(logger)}
	if ledger != nil {
		idxOpts = append(idxOpts, indexer.WithLedger(ledger))
	}
	if keywordIndex != nil {
		idxOpts = append(idxOpts, indexer.WithKeywordIndex(keywordIndex))
	}
	return &Server{
		cfg:          cfg,
		store:        store,
		embedder:     embedder,
		generator:    generator,
		ledger:       ledger,
		keywordIndex: keywordIndex,
		extractor:    extract.NewExtractor(extract.WithTempDir(cfg.Storage.TempDir), extract.WithLogger(logger)),
		indexer:      indexer.NewIndexer(store, embedder, cfg.Retrieval, idxOpts...),
		logger:       logger,
	}
}

// Handler returns the router with middleware and every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		// Wildcard origins with credentials: the matched origin is echoed back.
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/upload", s.handleUpload)
	r.Post("/upload/", s.handleUpload)
	r.Post("/query", s.handleQuery)
	r.Post("/query/", s.handleQuery)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
