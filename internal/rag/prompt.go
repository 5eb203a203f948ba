package rag

import (
	"strings"

	"github.com/hyperjump/insurepal/internal/llm"
)

// BuildPrompt renders the question-answering prompt over the retrieved
// context texts, separated by blank lines.
func BuildPrompt(contexts []string, question string) string {
	var b strings.Builder
	b.WriteString("Context information is below.\n")
	b.WriteString(llm.ContextDelimiter + "\n")
	b.WriteString(strings.Join(contexts, "\n\n"))
	b.WriteString("\n" + llm.ContextDelimiter + "\n")
	b.WriteString("Given the context information and not prior knowledge, answer the query.\n")
	b.WriteString(llm.QueryPrefix + question + "\n")
	b.WriteString("Answer: ")
	return b.String()
}
