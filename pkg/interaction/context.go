package interaction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/tastes/pkg/vector"
)

// Context kinds as they appear in the JSON "kind" field.
const (
	KindProduct = "product"
	KindText    = "text"
	KindVector  = "vector"
)

// Context is what an event's embedding is derived from. The set of kinds is
// closed: ProductContext, TextContext and VectorContext.
type Context interface {
	Kind() string
	isContext()
}

// ProductContext describes the interacted product.
type ProductContext struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TextContext is free text, e.g. a search query that led to the interaction.
type TextContext struct {
	Text string `json:"text"`
}

// VectorContext carries a precomputed embedding.
type VectorContext struct {
	Vector     []float32         `json:"vector"`
	Provenance vector.Provenance `json:"provenance"`
}

func (ProductContext) Kind() string { return KindProduct }
func (TextContext) Kind() string    { return KindText }
func (VectorContext) Kind() string  { return KindVector }

func (ProductContext) isContext() {}
func (TextContext) isContext()    {}
func (VectorContext) isContext()  {}

// EmbeddingText returns the text to embed for an event. Events without a
// text-bearing context fall back to the product ID.
func EmbeddingText(e *Event) string {
	switch c := e.Context.(type) {
	case ProductContext:
		parts := []string{c.Title}
		if c.Description != "" {
			parts = append(parts, c.Description)
		}
		if len(c.Tags) > 0 {
			parts = append(parts, strings.Join(c.Tags, ", "))
		}
		return strings.Join(parts, "\n")
	case TextContext:
		return c.Text
	default:
		return e.ProductID
	}
}

// Precomputed returns the event's precomputed embedding, if any.
func Precomputed(e *Event) (VectorContext, bool) {
	c, ok := e.Context.(VectorContext)
	return c, ok
}

func cloneContext(c Context) Context {
	switch c := c.(type) {
	case ProductContext:
		c.Tags = append([]string(nil), c.Tags...)
		return c
	case VectorContext:
		c.Vector = append([]float32(nil), c.Vector...)
		return c
	default:
		return c
	}
}

// MarshalContext encodes c as {"kind": ..., ...fields}.
func MarshalContext(c Context) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(c.Kind())
	fields["kind"] = kind
	return json.Marshal(fields)
}

// UnmarshalContext decodes the tagged JSON form produced by MarshalContext.
func UnmarshalContext(data []byte) (Context, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: context: %w", ErrInvalidEvent, err)
	}

	switch head.Kind {
	case KindProduct:
		var c ProductContext
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: product context: %w", ErrInvalidEvent, err)
		}
		return c, nil
	case KindText:
		var c TextContext
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: text context: %w", ErrInvalidEvent, err)
		}
		return c, nil
	case KindVector:
		var c VectorContext
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: vector context: %w", ErrInvalidEvent, err)
		}
		if err := c.Provenance.Validate(); err != nil {
			return nil, fmt.Errorf("%w: vector context: %w", ErrInvalidEvent, err)
		}
		if len(c.Vector) != c.Provenance.Dims {
			return nil, fmt.Errorf("%w: vector context has %d values for %d dims",
				ErrInvalidEvent, len(c.Vector), c.Provenance.Dims)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown context kind %q", ErrInvalidEvent, head.Kind)
	}
}

type eventJSON struct {
	*eventAlias
	Context json.RawMessage `json:"context,omitempty"`
}

type eventAlias Event

// MarshalJSON encodes the event with its tagged context.
func (e Event) MarshalJSON() ([]byte, error) {
	ctx, err := MarshalContext(e.Context)
	if err != nil {
		return nil, err
	}
	if e.Context == nil {
		ctx = nil
	}
	alias := eventAlias(e)
	return json.Marshal(eventJSON{eventAlias: &alias, Context: ctx})
}

// UnmarshalJSON decodes an event and its tagged context.
func (e *Event) UnmarshalJSON(data []byte) error {
	aux := eventJSON{eventAlias: (*eventAlias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c, err := UnmarshalContext(aux.Context)
	if err != nil {
		return err
	}
	e.Context = c
	return nil
}
