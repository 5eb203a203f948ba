// Package models defines the documents, chunks, and results passed between the
// extractor, the ingestion pipeline, and the query engine.
package models

import "time"

// Metadata keys attached to extracted documents and stored alongside vectors.
const (
	MetaFileName   = "file_name"
	MetaFileType   = "file_type"
	MetaPageLabel  = "page_label"
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaText       = "text"
)

// Document is one text segment produced by a reader (a PDF page, a DOCX body,
// a single mail message).
type Document struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// FileName returns the source file name recorded in metadata, if any.
func (d *Document) FileName() string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	name, _ := d.Metadata[MetaFileName].(string)
	return name
}

// Chunk is a window of document text that is embedded and upserted as one vector.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Namespace  string    `json:"namespace" db:"namespace"`
	FileName   string    `json:"file_name" db:"file_name"`
	Index      int       `json:"chunk_index" db:"chunk_index"`
	Text       string    `json:"text" db:"content"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// UploadRecord is the ledger entry written for every successfully indexed upload.
type UploadRecord struct {
	ID        string    `json:"id" db:"id"`
	Namespace string    `json:"namespace" db:"namespace"`
	FileName  string    `json:"file_name" db:"file_name"`
	Extension string    `json:"extension" db:"extension"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	Segments  int       `json:"segments" db:"segments"`
	Chunks    int       `json:"chunks" db:"chunks"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
