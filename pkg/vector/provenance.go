package vector

import (
	"errors"
	"fmt"
)

// Provenance tags a vector with the embedding space that produced it.
// Vectors are only comparable when their provenance is equal.
type Provenance struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Dims     int    `json:"dims"`
}

// Equal reports whether p and o describe the same embedding space.
func (p Provenance) Equal(o Provenance) bool {
	return p.Provider == o.Provider && p.Model == o.Model && p.Dims == o.Dims
}

// SameModel reports whether p and o come from the same provider and model,
// regardless of dims.
func (p Provenance) SameModel(o Provenance) bool {
	return p.Provider == o.Provider && p.Model == o.Model
}

// Validate checks that every field is set.
func (p Provenance) Validate() error {
	switch {
	case p.Provider == "":
		return errors.New("provenance is missing a provider")
	case p.Model == "":
		return errors.New("provenance is missing a model")
	case p.Dims <= 0:
		return fmt.Errorf("provenance has invalid dims %d", p.Dims)
	}
	return nil
}

func (p Provenance) String() string {
	return fmt.Sprintf("%s/%s@%d", p.Provider, p.Model, p.Dims)
}
