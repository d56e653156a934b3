package testutils

import (
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/tastes/pkg/vector"
)

// MockVectorDriver is a test vector driver that ranks its documents by
// brute-force cosine similarity.
type MockVectorDriver struct {
	mu         sync.Mutex
	documents  map[string][]float32
	provenance vector.Provenance

	// Queries records every query received.
	Queries []vector.Query

	// FailQuery causes Query to return vector.ErrConnection.
	FailQuery bool
}

func NewMockVectorDriver(p vector.Provenance) *MockVectorDriver {
	return &MockVectorDriver{
		documents:  make(map[string][]float32),
		provenance: p,
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if err := vector.CheckDocuments(m.provenance, docs); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.documents[d.ProductID] = slices.Clone(d.Embedding)
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, q vector.Query) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, q)

	if m.FailQuery {
		return nil, vector.ErrConnection
	}
	if err := vector.CheckQuery(m.provenance, q); err != nil {
		return nil, err
	}

	results := make([]vector.QueryResult, 0, len(m.documents))
	for id, emb := range m.documents {
		cos, err := vector.Cosine(q.Vector, emb)
		if err != nil {
			return nil, err
		}
		results = append(results, vector.QueryResult{ProductID: id, Score: float32((1 + cos) / 2)})
	}
	slices.SortFunc(results, func(a, b vector.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	topK := q.TopK
	if topK <= 0 {
		topK = vector.DefaultTopK
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.documents, id)
	}
	return nil
}

// Len returns the number of indexed documents.
func (m *MockVectorDriver) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents)
}

func (m *MockVectorDriver) Provenance() vector.Provenance {
	return m.provenance
}

func (m *MockVectorDriver) Close() error {
	return nil
}
