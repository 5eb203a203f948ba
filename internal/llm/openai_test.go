package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/insurepal/internal/apperr"
	"github.com/hyperjump/insurepal/internal/config"
)

func TestOpenAIGenerator_Complete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string    `json:"model"`
			Messages    []Message `json:"messages"`
			Temperature float32   `json:"temperature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Model != "gpt-3.5-turbo" || body.Temperature != 0.1 {
			t.Errorf("unexpected request: %+v", body)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != RoleUser || body.Messages[0].Content != "prompt" {
			t.Errorf("messages = %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": " The deductible is $500. "}}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL+"/v1", "sk", "gpt-3.5-turbo", 0.1)
	got, err := g.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "The deductible is $500." {
		t.Errorf("got %q", got)
	}
}

func TestOpenAIGenerator_errorsAreRemote(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := NewOpenAIGenerator(srv.URL, "", "m", 0).Complete(context.Background(), "p")
			if err == nil {
				t.Fatal("expected error")
			}
			if apperr.KindOf(err) != apperr.KindRemoteService {
				t.Errorf("kind = %v", apperr.KindOf(err))
			}
		})
	}
}

func TestNew(t *testing.T) {
	g, err := New(config.ProviderConfig{Type: "offline"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*ExtractiveGenerator); !ok {
		t.Errorf("got %T", g)
	}
	if _, err := New(config.ProviderConfig{Type: "llama"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
