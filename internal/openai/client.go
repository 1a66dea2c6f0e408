// Package openai provides a thin wrapper around the official OpenAI Go SDK
// for embeddings. With a base URL override it also serves OpenAI-compatible
// local model servers (e.g. Ollama's /v1 endpoint).
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/storyweave/backend/internal/apperrors"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
)

const (
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
	providerName   = "openai"
)

// Client calls an OpenAI-compatible embeddings API via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
	baseURL    string
	timeout    time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the embedding model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible host (e.g. Ollama).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithDimensions sets the expected embedding dimension. Zero disables the
// server-side dimension request and the response length check against it.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithTimeout bounds each embedding request. A provider hang must not stall
// the refresh or rebuild path indefinitely.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient creates an embeddings client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		model:   defaultModel,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(client.timeout),
	}
	if client.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(client.baseURL))
	}

	client.sdk = openaisdk.NewClient(sdkOpts...)

	return client
}

// CreateEmbedding returns the embedding vector for the given text. A failed
// request gets exactly one fallback attempt; a second failure propagates as
// an *apperrors.ProviderError.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	resp, err := c.request(ctx, input)
	if err != nil {
		// A dead context dooms the fallback too; fail without a second call.
		if ctx.Err() != nil {
			return nil, apperrors.NewProviderError(providerName, "embedding request failed", err)
		}

		slog.Debug("openai: embedding request failed, retrying once", "model", c.model, "error", err)

		resp, err = c.request(ctx, input)
		if err != nil {
			return nil, apperrors.NewProviderError(providerName, "embedding request failed", err)
		}
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperrors.NewProviderError(providerName, "empty embedding response", ErrNoEmbeddingInResponse)
	}

	emb := resp.Data[0].Embedding
	if c.dimensions > 0 && len(emb) != c.dimensions {
		return nil, apperrors.NewProviderError(providerName,
			fmt.Sprintf("got %d dimensions, want %d", len(emb), c.dimensions), ErrDimensionMismatch)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}

func (c *Client) request(ctx context.Context, input string) (*openaisdk.CreateEmbeddingResponse, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model: openaisdk.EmbeddingModel(c.model),
	}
	if c.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(c.dimensions))
	}

	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	return resp, nil
}
