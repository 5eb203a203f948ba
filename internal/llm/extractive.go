package llm

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// ContextDelimiter brackets the retrieved context inside a QA prompt.
const ContextDelimiter = "---------------------"

// QueryPrefix introduces the question inside a QA prompt.
const QueryPrefix = "Query: "

var sentenceSplit = regexp.MustCompile(`(?m)[^.!?\n]+[.!?]*`)

// ExtractiveGenerator answers a QA prompt with the context sentence that
// shares the most words with the query. It never calls out of process.
type ExtractiveGenerator struct{}

// NewExtractiveGenerator returns an extractive generator.
func NewExtractiveGenerator() *ExtractiveGenerator {
	return &ExtractiveGenerator{}
}

// Complete parses prompt into context and query and returns the best sentence.
// A prompt with no context yields an empty answer.
func (g *ExtractiveGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contextText, query := splitPrompt(prompt)
	return BestSentence(contextText, query), nil
}

// splitPrompt returns the text between the first pair of context delimiters
// and the text after the query prefix, up to the next line.
func splitPrompt(prompt string) (contextText, query string) {
	parts := strings.SplitN(prompt, ContextDelimiter, 3)
	if len(parts) == 3 {
		contextText = parts[1]
	}
	if i := strings.LastIndex(prompt, QueryPrefix); i >= 0 {
		query = prompt[i+len(QueryPrefix):]
		if nl := strings.IndexByte(query, '\n'); nl >= 0 {
			query = query[:nl]
		}
	}
	return strings.TrimSpace(contextText), strings.TrimSpace(query)
}

// BestSentence returns the sentence of text with the largest word overlap
// with query. Ties keep the earlier sentence; with no overlap the first
// sentence is returned.
func BestSentence(text, query string) string {
	sentences := sentenceSplit.FindAllString(text, -1)
	qTokens := map[string]struct{}{}
	for _, w := range words(query) {
		qTokens[w] = struct{}{}
	}
	best, bestScore := "", -1
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		score := 0
		for _, w := range words(s) {
			if _, ok := qTokens[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	return best
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
