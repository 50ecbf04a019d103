// Package ai wraps the language model provider behind small interfaces:
// an embedder for catalog search and a chat assistant for drafting suggestions.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"logicforge/internal/config"
)

var (
	// ErrProviderUnavailable means no provider is configured or the provider call failed.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrInvalidResponse means the provider answered with something that is not the requested JSON.
	ErrInvalidResponse = errors.New("ai provider returned an invalid response")
)

// Generator is the slice of llms.Model the assistant needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type unavailable struct {
	reason string
}

func (u unavailable) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, u.reason)
}

func (u unavailable) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, u.reason)
}

func newOpenAI(cfg config.AIConfig) (*openai.LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ai.api_key is not set", ErrProviderUnavailable)
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return llm, nil
}

// NewEmbedder returns the configured embedding provider. When no provider is
// configured, or it cannot be built, every call fails with ErrProviderUnavailable.
func NewEmbedder(cfg config.AIConfig) Embedder {
	if cfg.Provider != config.ProviderOpenAI {
		return unavailable{reason: "no provider configured"}
	}
	llm, err := newOpenAI(cfg)
	if err != nil {
		return unavailable{reason: err.Error()}
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return unavailable{reason: err.Error()}
	}
	return emb
}

// NewGenerator returns the configured chat provider, with the same fallback as NewEmbedder.
func NewGenerator(cfg config.AIConfig) Generator {
	if cfg.Provider != config.ProviderOpenAI {
		return unavailable{reason: "no provider configured"}
	}
	llm, err := newOpenAI(cfg)
	if err != nil {
		return unavailable{reason: err.Error()}
	}
	return llm
}
