package config

import (
	"fmt"
	"time"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/preference"
)

// Tuning converts the [engine] section into validated preference tuning.
func (c EngineConfig) Tuning() (preference.Tuning, error) {
	embedTimeout, err := parseDuration("engine.embed_timeout", c.EmbedTimeout)
	if err != nil {
		return preference.Tuning{}, err
	}
	storeTimeout, err := parseDuration("engine.store_timeout", c.StoreTimeout)
	if err != nil {
		return preference.Tuning{}, err
	}

	t := preference.Tuning{
		Decay:       c.Decay,
		WeightScale: c.WeightScale,
		Weights: map[interaction.Action]float64{
			interaction.ActionView:      c.Weights.View,
			interaction.ActionClick:     c.Weights.Click,
			interaction.ActionAddToList: c.Weights.AddToList,
			interaction.ActionPurchase:  c.Weights.Purchase,
			interaction.ActionDismiss:   c.Weights.Dismiss,
		},
		MaxAttempts:  int(c.MaxAttempts),
		EmbedTimeout: embedTimeout,
		StoreTimeout: storeTimeout,
	}
	if err := t.Validate(); err != nil {
		return preference.Tuning{}, err
	}
	return t, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", preference.ErrInvalidTuning, key, err)
	}
	return d, nil
}
