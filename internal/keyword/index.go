// Package keyword provides a BM25 keyword index over chunk text, partitioned
// by namespace, used for hybrid retrieval.
package keyword

import "context"

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the file name.
	// Values <= 1 disable the separate title clause.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 1.
	Fuzziness int
}

// Chunk is the unit indexed for keyword search.
type Chunk struct {
	ID        string
	Namespace string
	FileName  string
	Text      string
}

// Index defines keyword search operations.
type Index interface {
	Index(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, namespace, query string, limit int, opts *SearchOptions) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64
}
