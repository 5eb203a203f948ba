package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Field names in the Bleve document mapping.
const (
	fieldContent   = "content"
	fieldTitle     = "title"
	fieldNamespace = "namespace"
)

// namespaceTerm maps a namespace to its indexed keyword. The prefix keeps the
// shared namespace "" indexable.
func namespaceTerm(ns string) string {
	return "ns:" + ns
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "deductible" matches exactly.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldTitle, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldNamespace, bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newMapping()
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds chunks in one batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := map[string]interface{}{
			fieldContent:   c.Text,
			fieldTitle:     titleText(c.FileName),
			fieldNamespace: namespaceTerm(c.Namespace),
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search returns up to limit chunks of namespace matching query, best first.
func (b *BleveIndex) Search(ctx context.Context, namespace, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	titleBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 1
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var textQuery blevequery.Query
	if fuzzyEnabled {
		textQuery = buildFuzzyQuery(query, fuzziness, fieldContent)
	} else {
		cq := bleve.NewMatchQuery(query)
		cq.SetField(fieldContent)
		textQuery = cq
	}
	if titleBoost > 1 {
		tq := bleve.NewMatchQuery(query)
		tq.SetField(fieldTitle)
		tq.SetBoost(titleBoost)
		textQuery = bleve.NewDisjunctionQuery(textQuery, tq)
	}
	nsQuery := bleve.NewTermQuery(namespaceTerm(namespace))
	nsQuery.SetField(fieldNamespace)

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(textQuery, nsQuery))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// titleText splits a file name on dots, dashes and underscores so its words
// tokenize separately ("travel_policy.pdf" -> "travel policy pdf").
func titleText(fileName string) string {
	return strings.Join(strings.FieldsFunc(fileName, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	}), " ")
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		term = strings.Trim(term, ".,;:!?\"'()")
		if term == "" {
			continue
		}
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		return mq
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
