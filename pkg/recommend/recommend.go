// Package recommend ranks catalog products against a user's stored
// preference vector.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// ErrNoPreference is returned when the user has no committed preference state.
var ErrNoPreference = errors.New("user has no preference state")

// MaxTopK bounds a single recommendation request.
const MaxTopK = 100

// StateReader reads committed preference states. preference.Engine
// satisfies it.
type StateReader interface {
	GetPreferenceState(ctx context.Context, userID string) (*storage.State, error)
}

// Recommender turns a stored preference vector into a similarity query.
type Recommender struct {
	states StateReader
	index  vector.Driver
	logger *slog.Logger
}

// NewRecommender creates a Recommender over the given state reader and
// product index. A nil logger discards output.
func NewRecommender(states StateReader, index vector.Driver, log *slog.Logger) *Recommender {
	if log == nil {
		log = logger.Nop()
	}
	return &Recommender{states: states, index: index, logger: log}
}

// Recommend returns up to topK products ranked by similarity to the user's
// preference vector, highest first, skipping any product in exclude.
func (r *Recommender) Recommend(ctx context.Context, userID string, topK int, exclude []string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = vector.DefaultTopK
	}
	topK = min(topK, MaxTopK)

	state, err := r.states.GetPreferenceState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPreference, userID)
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	results, err := r.index.Query(ctx, vector.Query{
		Vector:     state.Vector,
		Provenance: state.Provenance,
		TopK:       topK + len(skip),
	})
	if err != nil {
		return nil, fmt.Errorf("querying product index: %w", err)
	}

	out := make([]vector.QueryResult, 0, topK)
	for _, res := range results {
		if _, ok := skip[res.ProductID]; ok {
			continue
		}
		out = append(out, res)
		if len(out) == topK {
			break
		}
	}

	r.logger.Debug("recommendations ranked",
		"user_id", userID,
		"version", state.Version,
		"candidates", len(results),
		"returned", len(out),
	)
	return out, nil
}
