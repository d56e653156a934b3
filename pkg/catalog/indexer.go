package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tastes/pkg/embeddings"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// DefaultBatchSize is the number of documents written to the index per Add.
const DefaultBatchSize = 64

// IndexResult contains statistics from an indexing run.
type IndexResult struct {
	Indexed     int
	Embedded    int
	Precomputed int

	// Rejected counts products whose precomputed vector is from another
	// embedding space or has the wrong dimensions.
	Rejected int
}

// Indexer embeds catalog products and adds them to a vector.Driver.
type Indexer struct {
	index     vector.Driver
	embedder  embeddings.Embedder
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an Indexer. embedder may be nil when every product
// carries a precomputed vector.
func NewIndexer(index vector.Driver, embedder embeddings.Embedder, batchSize int, l *slog.Logger) (*Indexer, error) {
	if index == nil {
		return nil, errors.New("catalog indexing requires a product index")
	}
	if embedder != nil && !embedder.Provenance().Equal(index.Provenance()) {
		return nil, fmt.Errorf("%w: embedder %s, index %s",
			vector.ErrProvenanceMismatch, embedder.Provenance(), index.Provenance())
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Indexer{index: index, embedder: embedder, batchSize: batchSize, logger: l}, nil
}

// Index adds products to the index in batches. Products with a mismatched
// precomputed vector are skipped. Embedding failures stop the run.
func (x *Indexer) Index(ctx context.Context, products []Product) (*IndexResult, error) {
	result := &IndexResult{}
	prov := x.index.Provenance()
	batch := make([]vector.Document, 0, x.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := x.index.Add(ctx, batch); err != nil {
			return fmt.Errorf("adding %d products to index: %w", len(batch), err)
		}
		result.Indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	for i := range products {
		p := &products[i]

		doc, precomputed, err := x.document(ctx, p, prov)
		if err != nil {
			if errors.Is(err, vector.ErrProvenanceMismatch) || errors.Is(err, vector.ErrDimensionMismatch) {
				result.Rejected++
				x.logger.Warn("skipping product", "product_id", p.ProductID, "error", err)
				continue
			}
			return result, err
		}
		if precomputed {
			result.Precomputed++
		} else {
			result.Embedded++
		}

		batch = append(batch, doc)
		if len(batch) == x.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}
	return result, nil
}

func (x *Indexer) document(ctx context.Context, p *Product, prov vector.Provenance) (vector.Document, bool, error) {
	if len(p.Vector) > 0 {
		if p.Provenance == nil || !p.Provenance.Equal(prov) {
			return vector.Document{}, true, fmt.Errorf("%w: product %s is not in %s",
				vector.ErrProvenanceMismatch, p.ProductID, prov)
		}
		if len(p.Vector) != prov.Dims {
			return vector.Document{}, true, fmt.Errorf("%w: product %s has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, p.ProductID, len(p.Vector), prov.Dims)
		}
		return vector.Document{ProductID: p.ProductID, Embedding: p.Vector}, true, nil
	}

	if x.embedder == nil {
		return vector.Document{}, false, fmt.Errorf("product %s has no vector and no embedder is configured", p.ProductID)
	}

	emb, err := x.embedder.Embed(ctx, p.Text())
	if err != nil {
		return vector.Document{}, false, fmt.Errorf("embedding product %s: %w", p.ProductID, err)
	}
	if err := embeddings.CheckDims(prov, emb); err != nil {
		return vector.Document{}, false, err
	}
	return vector.Document{ProductID: p.ProductID, Embedding: emb}, false, nil
}
