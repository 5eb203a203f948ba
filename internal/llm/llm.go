// Package llm generates answers from a prompt, either through an
// OpenAI-compatible chat API or with a local extractive stand-in.
package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/insurepal/internal/config"
)

// Role is a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator completes a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New returns the generator selected by cfg.Type.
func New(cfg config.ProviderConfig) (Generator, error) {
	switch cfg.Type {
	case "openai", "":
		return NewOpenAIGenerator(cfg.BaseURL, cfg.APIKey, cfg.ChatModel, cfg.GenerationTemperature(),
			WithTimeout(cfg.TimeoutSecs)), nil
	case "offline":
		return NewExtractiveGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
