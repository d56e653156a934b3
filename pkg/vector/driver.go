// Package vector provides the embedding space primitives shared by user
// preference vectors and product vectors, plus the driver interface for the
// nearest-neighbor index that ranks products against a preference vector.
package vector

import (
	"context"
	"fmt"
)

// Document is a product vector stored in the index.
type Document struct {
	// ProductID identifies the catalog product this vector represents.
	ProductID string

	// Embedding is the product's vector in the index's embedding space.
	Embedding []float32
}

// Query is a similarity query built from a stored preference vector.
type Query struct {
	// Vector is the query vector, typically a user's preference vector.
	Vector []float32

	// Provenance is the embedding space the vector belongs to. Drivers reject
	// queries whose provenance differs from the index they were built against.
	Provenance Provenance

	// TopK is the maximum number of results. Drivers default it when <= 0.
	TopK int
}

// QueryResult is a ranked candidate product.
type QueryResult struct {
	ProductID string

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of product vectors.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ProductID already exists, implementers should
	// update the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the query vector,
	// highest score first.
	Query(ctx context.Context, q Query) ([]QueryResult, error)

	// Delete removes documents by their product IDs.
	Delete(ctx context.Context, productIDs []string) error

	// Provenance returns the embedding space the index was built against.
	Provenance() Provenance

	// Close releases any resources held by the driver.
	Close() error
}

// DefaultTopK is used by drivers when a query does not set TopK.
const DefaultTopK = 10

// CheckQuery validates that q can be run against an index built with the
// given provenance.
func CheckQuery(index Provenance, q Query) error {
	if !index.Equal(q.Provenance) {
		return fmt.Errorf("%w: index %s, query %s", ErrProvenanceMismatch, index, q.Provenance)
	}
	if len(q.Vector) != index.Dims {
		return fmt.Errorf("%w: query vector has %d dimensions, index has %d",
			ErrDimensionMismatch, len(q.Vector), index.Dims)
	}
	return nil
}

// CheckDocuments validates that every document fits an index built with the
// given provenance.
func CheckDocuments(index Provenance, docs []Document) error {
	for _, doc := range docs {
		if doc.ProductID == "" {
			return fmt.Errorf("document is missing a product id")
		}
		if len(doc.Embedding) != index.Dims {
			return fmt.Errorf("%w: product %s has %d dimensions, index has %d",
				ErrDimensionMismatch, doc.ProductID, len(doc.Embedding), index.Dims)
		}
	}
	return nil
}
