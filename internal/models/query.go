package models

// SourceNode is one retrieved chunk that contributed context to an answer.
type SourceNode struct {
	ChunkID       string  `json:"chunk_id"`
	FileName      string  `json:"file_name,omitempty"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
}

// QueryResult is the generated answer plus the sources it was grounded on.
// Sources are informational only and are not returned by the HTTP API.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []*SourceNode `json:"-"`
}

// EmptyResponse is the answer returned when retrieval finds no context.
const EmptyResponse = "Empty Response"

// ContextTexts returns the text of every source in rank order.
func (r *QueryResult) ContextTexts() []string {
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, s.Text)
	}
	return out
}
