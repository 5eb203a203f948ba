// Package fileid derives stable identifiers for uploaded documents and their chunks.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const chunkPrefix = "chunk:"

// ChunkID returns the ID of the chunk at index within documentID. The same
// pair always yields the same ID, so a retried upsert overwrites rather than
// duplicates vectors.
func ChunkID(documentID string, index int) string {
	hash := sha256.Sum256([]byte(documentID + "#" + strconv.Itoa(index)))
	return chunkPrefix + hex.EncodeToString(hash[:16])
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
