package models

import "testing"

func TestDocument_FileName(t *testing.T) {
	d := &Document{Metadata: map[string]interface{}{MetaFileName: "policy.pdf"}}
	if got := d.FileName(); got != "policy.pdf" {
		t.Errorf("FileName() = %q", got)
	}
	var nilDoc *Document
	if got := nilDoc.FileName(); got != "" {
		t.Errorf("nil FileName() = %q", got)
	}
	if got := (&Document{}).FileName(); got != "" {
		t.Errorf("no metadata FileName() = %q", got)
	}
}

func TestQueryResult_ContextTexts(t *testing.T) {
	r := &QueryResult{Sources: []*SourceNode{{Text: "a"}, {Text: "b"}}}
	got := r.ContextTexts()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("ContextTexts() = %v", got)
	}
}
