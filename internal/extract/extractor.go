// Package extract turns uploaded files into plain-text documents.
//
// Readers work on filesystem paths, so the Extractor stages the uploaded bytes
// in a temporary file that is removed before Extract returns.
package extract

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hyperjump/insurepal/internal/apperr"
	"github.com/hyperjump/insurepal/internal/models"
	"go.uber.org/zap"
)

// Reader loads documents from a file on disk.
type Reader interface {
	Load(path string) ([]*models.Document, error)
}

// Extractor dispatches uploads to a Reader by file extension.
type Extractor struct {
	readers map[string]Reader
	tempDir string
	logger  *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithTempDir sets the directory used for staging uploads. Empty means os.TempDir().
func WithTempDir(dir string) ExtractorOption {
	return func(e *Extractor) { e.tempDir = dir }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// WithReader registers (or replaces) the reader for ext (without the leading dot).
func WithReader(ext string, r Reader) ExtractorOption {
	return func(e *Extractor) { e.readers[strings.ToLower(ext)] = r }
}

// NewExtractor returns an Extractor with the PDF, DOCX, and mail readers registered.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	mail := NewMailReader()
	e := &Extractor{
		readers: map[string]Reader{
			"pdf":  NewPDFReader(),
			"docx": NewDocxReader(),
			"mbox": mail,
			"eml":  mail,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extension returns the lower-cased text after the last dot of fileName.
// A name without a dot is returned whole, lower-cased.
func Extension(fileName string) string {
	lower := strings.ToLower(fileName)
	if i := strings.LastIndex(lower, "."); i >= 0 {
		return lower[i+1:]
	}
	return lower
}

// Supports reports whether ext (without the leading dot) has a reader.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.readers[strings.ToLower(ext)]
	return ok
}

// SupportedExtensions returns the registered extensions in sorted order.
func (e *Extractor) SupportedExtensions() []string {
	out := make([]string, 0, len(e.readers))
	for ext := range e.readers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract converts content into documents using the reader registered for the
// extension of fileName. Unknown extensions return apperr.ErrUnsupportedFormat
// without writing anything to disk. Reader failures are classified as
// extraction failures. Every returned document carries file_name and file_type metadata.
func (e *Extractor) Extract(ctx context.Context, fileName string, content []byte) ([]*models.Document, error) {
	ext := Extension(fileName)
	reader, ok := e.readers[ext]
	if !ok {
		return nil, apperr.ErrUnsupportedFormat
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, cleanup, err := e.stage(ext, content)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	docs, err := reader.Load(path)
	if err != nil {
		return nil, apperr.Extraction("extract "+ext, err)
	}
	for _, doc := range docs {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]interface{})
		}
		doc.Metadata[models.MetaFileName] = fileName
		doc.Metadata[models.MetaFileType] = ext
	}
	e.logger.Debug("extracted document",
		zap.String("file_name", fileName),
		zap.String("ext", ext),
		zap.Int("segments", len(docs)))
	return docs, nil
}

// stage writes content to a new temp file with the given extension and returns
// its path and a func that removes it.
func (e *Extractor) stage(ext string, content []byte) (string, func(), error) {
	f, err := os.CreateTemp(e.tempDir, "upload-*."+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("temp file removal failed", zap.String("path", path), zap.Error(err))
		}
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}
