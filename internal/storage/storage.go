// Package storage keeps the upload ledger: one row per indexed file and one
// per chunk, so uploads can be listed and keyword hits resolved to text.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/insurepal/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Ledger defines upload and chunk persistence operations.
type Ledger interface {
	CreateUpload(ctx context.Context, rec *models.UploadRecord) error
	GetUpload(ctx context.Context, id string) (*models.UploadRecord, error)
	// ListUploads returns uploads newest first. An empty namespace lists every namespace.
	ListUploads(ctx context.Context, namespace string, offset, limit int) ([]*models.UploadRecord, error)

	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)

	CountUploads(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
