package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/tastes/pkg/vector"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	mu         sync.Mutex
	embeddings map[string][]float32

	// Prov is reported by Provenance. Defaults to TestProvenance.
	Prov vector.Provenance

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Delay makes Embed block until it elapses or the context is done.
	Delay time.Duration

	calls atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		embeddings: make(map[string][]float32),
		Prov:       TestProvenance,
	}
}

// Set registers the embedding returned for text.
func (m *MockEmbedder) Set(text string, v ...float32) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[text] = v
	return m
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, ctx.Err())
		}
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", vector.ErrEmbedding, text)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if emb, ok := m.embeddings[text]; ok {
		return append([]float32(nil), emb...), nil
	}

	// Return a default embedding for any text
	v := make([]float32, m.Prov.Dims)
	if len(v) > 0 {
		v[0] = 1
	}
	return v, nil
}

// Calls returns how many times Embed was called.
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

func (m *MockEmbedder) Provenance() vector.Provenance {
	return m.Prov
}

func (m *MockEmbedder) Close() error {
	return nil
}
