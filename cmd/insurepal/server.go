package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/insurepal/internal/config"
	"github.com/hyperjump/insurepal/internal/embedding"
	"github.com/hyperjump/insurepal/internal/keyword"
	"github.com/hyperjump/insurepal/internal/llm"
	"github.com/hyperjump/insurepal/internal/server"
	"github.com/hyperjump/insurepal/internal/storage"
	"github.com/hyperjump/insurepal/internal/vectorstore"
	"github.com/hyperjump/insurepal/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Components holds the long-lived services behind the HTTP server.
type Components struct {
	Store        vectorstore.Store
	Embedder     embedding.Embedder
	Generator    llm.Generator
	Ledger       *storage.SQLiteLedger
	KeywordIndex *keyword.BleveIndex
}

// Close persists the memory vector snapshot and closes every component.
func (c *Components) Close(cfg *config.Config, logger *zap.Logger) {
	if mem, ok := c.Store.(*vectorstore.MemoryStore); ok {
		if err := mem.Save(cfg.Storage.VectorSnapshotPath); err != nil {
			logger.Warn("vector snapshot save failed", zap.String("path", cfg.Storage.VectorSnapshotPath), zap.Error(err))
		}
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	c.Ledger = ledger

	embedder, err := embedding.New(cfg.Provider, cfg.VectorStore.Dimension)
	if err != nil {
		c.Close(cfg, logger)
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	generator, err := llm.New(cfg.Provider)
	if err != nil {
		c.Close(cfg, logger)
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	c.Generator = generator

	store, err := vectorstore.New(cfg.VectorStore, logger)
	if err != nil {
		c.Close(cfg, logger)
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if mem, ok := store.(*vectorstore.MemoryStore); ok {
		if loadErr := mem.Load(cfg.Storage.VectorSnapshotPath); loadErr != nil {
			logger.Warn("vector snapshot load skipped", zap.String("path", cfg.Storage.VectorSnapshotPath), zap.Error(loadErr))
		}
	}
	c.Store = store
	// Credentials are not validated up front; a failure here is retried
	// lazily on the first upsert or query.
	if err := store.EnsureIndex(ctx); err != nil {
		logger.Warn("vector index not ready", zap.String("index", cfg.VectorStore.IndexName), zap.Error(err))
	}
	logger.Info("vector store initialized",
		zap.String("type", store.Type()),
		zap.String("index", cfg.VectorStore.IndexName),
		zap.Int("dimension", cfg.VectorStore.Dimension))

	if cfg.Retrieval.Hybrid {
		kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			c.Close(cfg, logger)
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.KeywordIndex = kw
	}
	return c, nil
}

func newServerCmd(opts *rootOptions) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolvedConfigPath, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			debugMode := cfg.Debug || debug
			logger, err := utils.NewLogger(debugMode)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			logger.Info("config loaded",
				zap.String("config_path", resolvedConfigPath),
				zap.Bool("debug", debugMode),
				zap.String("provider", cfg.Provider.Type),
				zap.Bool("hybrid", cfg.Retrieval.Hybrid))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

// runServer serves until ctx is canceled, then shuts down within
// shutdownTimeout and closes the components.
func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close(cfg, logger)

	var kw keyword.Index
	if components.KeywordIndex != nil {
		kw = components.KeywordIndex
	}
	srv := server.NewServer(cfg, components.Store, components.Embedder, components.Generator,
		components.Ledger, kw, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
