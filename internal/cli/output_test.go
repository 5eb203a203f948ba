package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/insurepal/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "JSON": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteAnswer(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, "q?", "The deductible is $500.", OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "The deductible is $500.\n" {
		t.Errorf("text output %q", buf.String())
	}

	buf.Reset()
	if err := WriteAnswer(&buf, "q?", "a", OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["question"] != "q?" || decoded["answer"] != "a" {
		t.Errorf("decoded %v", decoded)
	}
}

func TestWriteStatus_text(t *testing.T) {
	status := map[string]interface{}{
		"uploads": 2,
		"vector_store": map[string]interface{}{
			"index_name":    "insurepal-index",
			"total_vectors": 7,
		},
		"hybrid": false,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "hybrid:") || !strings.HasPrefix(lines[3], "vector_store.total_vectors:") {
		t.Errorf("unexpected order:\n%s", buf.String())
	}
}

func TestWriteDocuments(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No documents.\n" {
		t.Errorf("empty output %q", buf.String())
	}

	buf.Reset()
	docs := []*models.UploadRecord{{ID: "doc-1", FileName: "policy.pdf", Chunks: 3, SizeBytes: 1024, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}}
	if err := WriteDocuments(&buf, docs, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "doc-1", "policy.pdf", "2024-01-02 03:04:05"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
