package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestEmbeddingCache_getRefreshesRecency(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3}) // evicts b, not a
	if _, ok := c.Get("a"); !ok {
		t.Error("a was recently used and should remain")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

type countingEmbedder struct {
	*HashEmbedder
	calls  int
	inputs int
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.inputs += len(texts)
	return e.HashEmbedder.EmbedBatch(ctx, texts)
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	e.inputs++
	return e.HashEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder_onlyMissesReachInner(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	e := NewCachedEmbedder(inner, NewEmbeddingCache(10))
	ctx := context.Background()

	if _, err := e.Embed(ctx, "deductible"); err != nil {
		t.Fatal(err)
	}
	embs, err := e.EmbedBatch(ctx, []string{"deductible", "premium", "copay"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 3 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	if inner.inputs != 3 {
		t.Errorf("inner embedded %d texts, want 3", inner.inputs)
	}
	want, _ := inner.HashEmbedder.Embed(ctx, "premium")
	for i := range want {
		if embs[1][i] != want[i] {
			t.Fatal("batch result out of order")
		}
	}
	if _, err := e.EmbedBatch(ctx, []string{"premium", "copay"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times, want 2", inner.calls)
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
}
