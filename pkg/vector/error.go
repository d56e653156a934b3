package vector

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrProvenanceMismatch is returned when a vector from one embedding space
	// is used against an index or state from another.
	ErrProvenanceMismatch = errors.New("embedding provenance mismatch")

	// ErrDimensionMismatch is returned when two vectors that claim the same
	// embedding space have different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
