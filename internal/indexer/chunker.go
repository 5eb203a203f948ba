package indexer

import (
	"strings"

	"github.com/hyperjump/insurepal/internal/fileid"
	"github.com/hyperjump/insurepal/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into chunks of docID numbered from startIndex.
func (c *Chunker) Chunk(docID string, startIndex int, text string) []*models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, 0)
	chunkIndex := startIndex
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, &models.Chunk{
			ID:         fileid.ChunkID(docID, chunkIndex),
			DocumentID: docID,
			Index:      chunkIndex,
			Text:       strings.Join(words[i:end], " "),
		})
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
