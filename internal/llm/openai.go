package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/insurepal/internal/apperr"
)

// OpenAIGenerator calls an OpenAI-compatible POST /chat/completions endpoint
// without streaming.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	http        *http.Client
}

// Option configures an OpenAIGenerator.
type Option func(*OpenAIGenerator)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *OpenAIGenerator) { g.http = c }
}

// WithTimeout sets a per-request timeout in seconds. Zero means no timeout.
func WithTimeout(secs int) Option {
	return func(g *OpenAIGenerator) {
		if secs > 0 {
			g.http = &http.Client{Timeout: time.Duration(secs) * time.Second}
		}
	}
}

// NewOpenAIGenerator returns a chat-completion generator.
func NewOpenAIGenerator(baseURL, apiKey, model string, temperature float32, opts ...Option) *OpenAIGenerator {
	g := &OpenAIGenerator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		http:        &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete sends prompt as a single user message and returns the first choice.
func (g *OpenAIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := g.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", apperr.Remote("generate", err)
	}
	return out, nil
}

// Chat sends messages and returns the content of the first choice.
func (g *OpenAIGenerator) Chat(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       g.model,
		"messages":    messages,
		"temperature": g.temperature,
		"stream":      false,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
