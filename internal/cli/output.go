// Package cli formats command output for the insurepal CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/insurepal/internal/models"
	"github.com/hyperjump/insurepal/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteAnswer writes the answer to a one-shot question.
func WriteAnswer(w io.Writer, question, answer string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]string{"question": question, "answer": answer})
	}
	_, err := fmt.Fprintln(w, answer)
	return err
}

// WriteStatus writes the server status. Nested objects are flattened to
// dotted keys in text output, one "key: value" per line in key order.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	flat := make(map[string]interface{})
	flatten("", status, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%v\n", k, flat[k])
	}
	return tw.Flush()
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := v.(map[string]interface{}); ok {
			flatten(key, m, out)
			continue
		}
		out[key] = v
	}
}

// WriteDocuments writes a page of the upload ledger.
func WriteDocuments(w io.Writer, docs []*models.UploadRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No documents.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tCHUNKS\tSIZE\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			d.ID, utils.Truncate(d.FileName, 40), d.Chunks, d.SizeBytes, d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
