package preference

import (
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/papercomputeco/tastes/pkg/interaction"
)

const (
	// DefaultDecay is the share of the old preference that survives one
	// new signal.
	DefaultDecay = 0.9

	// DefaultWeightScale maps action weights onto the decayed vector's scale,
	// so a purchase (8 * 0.1) moves the vector well past a view (1 * 0.1).
	DefaultWeightScale = 0.1

	// DefaultMaxAttempts bounds the compare-and-swap loop.
	DefaultMaxAttempts = 3

	DefaultEmbedTimeout = 10 * time.Second
	DefaultStoreTimeout = 5 * time.Second
)

// DefaultWeights returns the per-action weight table.
func DefaultWeights() map[interaction.Action]float64 {
	return map[interaction.Action]float64{
		interaction.ActionView:      1,
		interaction.ActionClick:     2,
		interaction.ActionAddToList: 4,
		interaction.ActionPurchase:  8,
		interaction.ActionDismiss:   -2,
	}
}

// Tuning holds the merge parameters. A Tuning is immutable once handed to an
// Engine; use Engine.SetTuning to replace it.
type Tuning struct {
	// Decay is in (0, 1).
	Decay float64

	// WeightScale multiplies every action weight before merging.
	WeightScale float64

	// Weights maps actions to their default weight. Events carrying their
	// own weight bypass the table.
	Weights map[interaction.Action]float64

	// MaxAttempts is the number of compare-and-swap rounds before giving up.
	MaxAttempts int

	// EmbedTimeout and StoreTimeout bound each embedding call and each store
	// operation. Zero disables the bound.
	EmbedTimeout time.Duration
	StoreTimeout time.Duration
}

// DefaultTuning returns the default merge parameters.
func DefaultTuning() Tuning {
	return Tuning{
		Decay:        DefaultDecay,
		WeightScale:  DefaultWeightScale,
		Weights:      DefaultWeights(),
		MaxAttempts:  DefaultMaxAttempts,
		EmbedTimeout: DefaultEmbedTimeout,
		StoreTimeout: DefaultStoreTimeout,
	}
}

// Validate checks ranges and the relative ordering of the weight table:
// view < click < add_to_list < purchase, and dismiss < 0.
func (t Tuning) Validate() error {
	switch {
	case t.Decay <= 0 || t.Decay >= 1:
		return fmt.Errorf("%w: decay %v must be in (0, 1)", ErrInvalidTuning, t.Decay)
	case t.WeightScale <= 0:
		return fmt.Errorf("%w: weight scale %v must be positive", ErrInvalidTuning, t.WeightScale)
	case t.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts %d must be at least 1", ErrInvalidTuning, t.MaxAttempts)
	case t.EmbedTimeout < 0 || t.StoreTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidTuning)
	}

	ordered := []interaction.Action{
		interaction.ActionView,
		interaction.ActionClick,
		interaction.ActionAddToList,
		interaction.ActionPurchase,
		interaction.ActionDismiss,
	}
	for _, a := range ordered {
		if _, ok := t.Weights[a]; !ok {
			return fmt.Errorf("%w: missing weight for %s", ErrInvalidTuning, a)
		}
	}
	for i := 1; i < 4; i++ {
		lo, hi := ordered[i-1], ordered[i]
		if t.Weights[lo] >= t.Weights[hi] {
			return fmt.Errorf("%w: weight for %s (%v) must be below %s (%v)",
				ErrInvalidTuning, lo, t.Weights[lo], hi, t.Weights[hi])
		}
	}
	if t.Weights[interaction.ActionDismiss] >= 0 {
		return fmt.Errorf("%w: weight for dismiss must be negative", ErrInvalidTuning)
	}
	return nil
}

// Weight resolves the effective weight for an event before scaling.
func (t Tuning) Weight(e *interaction.Event) (float64, error) {
	if e.Weight != nil {
		if math.IsNaN(*e.Weight) || math.IsInf(*e.Weight, 0) {
			return 0, fmt.Errorf("%w: weight %v is not finite", interaction.ErrInvalidEvent, *e.Weight)
		}
		return *e.Weight, nil
	}
	w, ok := t.Weights[e.Action]
	if !ok {
		return 0, fmt.Errorf("%w: no default weight for action %q", interaction.ErrInvalidEvent, e.Action)
	}
	return w, nil
}

func (t Tuning) clone() Tuning {
	t.Weights = maps.Clone(t.Weights)
	return t
}
