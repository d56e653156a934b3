// Package openai implements pkg/embeddings' Embedder client for the OpenAI
// embeddings API and compatible servers.
package openai

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/tastes/pkg/embeddings"
	"github.com/papercomputeco/tastes/pkg/vector"
)

const (
	// ProviderName is the provenance provider for vectors from OpenAI.
	ProviderName = "openai"

	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultDimensions is the native size of DefaultEmbeddingModel.
	DefaultDimensions = 1536
)

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	APIKey string

	// BaseURL is optional, useful for compatible servers and tests.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions is sent with every request so text-embedding-3 models
	// shorten their output. Defaults to DefaultDimensions.
	Dimensions int
}

// Embedder wraps the OpenAI embeddings API.
type Embedder struct {
	client     openaisdk.Client
	provenance vector.Provenance
}

// NewEmbedder creates an OpenAI embedder. Returns an error if the API key is
// missing.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api_key in config")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{
		client:     openaisdk.NewClient(opts...),
		provenance: vector.Provenance{Provider: ProviderName, Model: model, Dims: dims},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
		Model:      openaisdk.EmbeddingModel(e.provenance.Model),
		Dimensions: openaisdk.Int(int64(e.provenance.Dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	raw := resp.Data[0].Embedding
	v := make([]float32, len(raw))
	for i, f := range raw {
		v[i] = float32(f)
	}
	if err := embeddings.CheckDims(e.provenance, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Provenance returns the embedding space of this embedder.
func (e *Embedder) Provenance() vector.Provenance {
	return e.provenance
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
