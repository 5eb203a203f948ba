package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/insurepal/internal/config"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i] * b[i])
	}
	return s
}

func TestHashEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "The policy deductible is $500.")
	b, _ := e.Embed(ctx, "The policy deductible is $500.")
	if len(a) != 64 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different embeddings")
		}
	}
	if n := dot(a, a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm^2 = %v, want 1", n)
	}
}

func TestHashEmbedder_sharedWordsAreCloser(t *testing.T) {
	e := NewHashEmbedder(1536)
	ctx := context.Background()
	doc, _ := e.Embed(ctx, "The policy deductible is $500.")
	q, _ := e.Embed(ctx, "What is the deductible?")
	other, _ := e.Embed(ctx, "Flood coverage excludes basements")
	if dot(doc, q) <= dot(other, q) {
		t.Errorf("related text should score higher: %v <= %v", dot(doc, q), dot(other, q))
	}
}

func TestHashEmbedder_emptyTextIsZero(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("What's the Deductible? $500!")
	want := []string{"what", "s", "the", "deductible", "500"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNew(t *testing.T) {
	e, err := New(config.ProviderConfig{Type: "offline", CacheSize: 10}, 32)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Dimensions() != 32 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
	e, err = New(config.ProviderConfig{Type: "openai"}, 1536)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*OpenAIEmbedder); !ok {
		t.Errorf("expected uncached OpenAI embedder, got %T", e)
	}
	if _, err := New(config.ProviderConfig{Type: "onnx"}, 8); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := NewHashEmbedder(1536)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "what is the deductible for water damage claims")
	}
}
