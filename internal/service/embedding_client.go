// Package service implements the embedding pipeline: paragraph refresh on
// message change, bulk rebuild, and similarity search.
package service

import (
	"context"
	"fmt"

	"github.com/storyweave/backend/internal/config"
	"github.com/storyweave/backend/internal/googleai"
	"github.com/storyweave/backend/internal/openai"
)

// EmbeddingClient is the interface for creating embeddings from text.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// NewEmbeddingClient builds the configured provider client. The openai
// provider also covers OpenAI-compatible local servers via EMBEDDING_HOST.
func NewEmbeddingClient(ctx context.Context, cfg *config.Config) (EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithBaseURL(cfg.EmbeddingHost),
			openai.WithDimensions(cfg.EmbeddingDimensions),
			openai.WithTimeout(cfg.EmbeddingTimeout),
		), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
			googleai.WithTimeout(cfg.EmbeddingTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// capParagraphs truncates a paragraph list to the configured per-message cap.
// A negative cap means unlimited. Refresh and rebuild share this so the
// staleness row-count check agrees with what refresh actually stores.
func capParagraphs(paragraphs []string, maxPerMessage int) []string {
	if maxPerMessage < 0 || len(paragraphs) <= maxPerMessage {
		return paragraphs
	}

	return paragraphs[:maxPerMessage]
}
