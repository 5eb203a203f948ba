package rag

import (
	"fmt"
	"testing"

	"github.com/hyperjump/insurepal/internal/keyword"
	"github.com/hyperjump/insurepal/internal/vectorstore"
)

func TestNormalizeKeywordScores(t *testing.T) {
	results := []*keyword.Result{
		{ID: "a", Score: 2},
		{ID: "b", Score: 4},
		{ID: "c", Score: 1},
	}
	m := NormalizeKeywordScores(results)
	if m["b"] != 1.0 {
		t.Errorf("max score should be 1.0, got %f", m["b"])
	}
	if m["a"] != 0.5 {
		t.Errorf("a should be 0.5, got %f", m["a"])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
	if len(NormalizeKeywordScores(nil)) != 0 {
		t.Error("nil results should give an empty map")
	}
}

func TestSemanticScores_clamps(t *testing.T) {
	m := SemanticScores([]*vectorstore.Match{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: -0.2},
		{ID: "c3", Score: 1.0000001},
	})
	if m["c1"] != 0.9 || m["c2"] != 0 || m["c3"] != 1 {
		t.Errorf("unexpected map %v", m)
	}
}

func TestFuse(t *testing.T) {
	kw := map[string]float64{"c1": 1.0, "c2": 0.5}
	sem := map[string]float64{"c1": 0.5, "c2": 1.0, "c3": 0.2}
	results := Fuse(kw, sem, 0.3, 0.7)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "c2" {
		t.Errorf("semantic weight should favour c2, got %s", results[0].ChunkID)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Error("results should be sorted by score descending")
		}
	}
	if results[2].KeywordScore != 0 || results[2].SemanticScore != 0.2 {
		t.Errorf("semantic-only result scores wrong: %+v", results[2])
	}
}

func TestFuse_tiesBreakByChunkID(t *testing.T) {
	results := Fuse(map[string]float64{"b": 1, "a": 1}, nil, 1, 0)
	if results[0].ChunkID != "a" || results[1].ChunkID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ChunkID, results[1].ChunkID)
	}
}

func BenchmarkFuse(b *testing.B) {
	kw := make(map[string]float64)
	sem := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("chunk:%02d", i)
		kw[id] = float64(i) / 100
		sem[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fuse(kw, sem, 0.3, 0.7)
	}
}
