// Package embeddings defines the boundary to the models that turn interaction
// context into vectors.
package embeddings

import (
	"context"
	"fmt"

	"github.com/papercomputeco/tastes/pkg/vector"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding of Provenance().Dims values.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Provenance returns the embedding space this embedder produces vectors in.
	Provenance() vector.Provenance

	// Close releases any resources held by the embedder.
	Close() error
}

// CheckDims returns an error wrapping vector.ErrEmbedding when v does not
// have the declared number of dimensions.
func CheckDims(p vector.Provenance, v []float32) error {
	if len(v) != p.Dims {
		return fmt.Errorf("%w: %s returned %d dimensions, expected %d",
			vector.ErrEmbedding, p.Provider, len(v), p.Dims)
	}
	return nil
}
