// Package interaction defines the user-product interaction events that feed
// preference vectors.
package interaction

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned when an event is missing a required field.
var ErrInvalidEvent = errors.New("invalid interaction event")

// Action is what the user did with the product.
type Action string

const (
	ActionView      Action = "view"
	ActionClick     Action = "click"
	ActionAddToList Action = "add_to_list"
	ActionPurchase  Action = "purchase"
	ActionDismiss   Action = "dismiss"
)

// Source is where the event was produced.
type Source string

const (
	SourceWeb     Source = "web"
	SourcePanel   Source = "panel"
	SourceWebhook Source = "webhook"
	SourceAPI     Source = "api"
)

// Event is a single logged interaction. Events are immutable once appended
// to the log.
type Event struct {
	// ID is assigned by the event log on append.
	ID string `json:"id,omitempty"`

	// UserID is the named user, absent for anonymous interactions.
	UserID *string `json:"user_id,omitempty"`

	// RecipientID identifies a non-user recipient, e.g. a newsletter address.
	RecipientID *string `json:"recipient_id,omitempty"`

	ProductID string `json:"product_id"`
	Action    Action `json:"action"`
	Source    Source `json:"source,omitempty"`

	// Weight overrides the per-action default weight when set.
	Weight *float64 `json:"weight,omitempty"`

	// Context carries what the embedding is derived from.
	Context Context `json:"-"`

	// Timestamp is set by the log at ingestion.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Validate checks required-field presence only.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ProductID == "" {
		return fmt.Errorf("%w: product_id is required", ErrInvalidEvent)
	}
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidEvent)
	}
	return nil
}

// HasUser reports whether the event names a user whose preference vector it
// can update.
func (e *Event) HasUser() bool {
	return e.UserID != nil && *e.UserID != ""
}

// Anonymous reports whether the event has neither a user nor a recipient.
func (e *Event) Anonymous() bool {
	return !e.HasUser() && (e.RecipientID == nil || *e.RecipientID == "")
}

// User returns the user ID or "" when absent.
func (e *Event) User() string {
	if e.UserID == nil {
		return ""
	}
	return *e.UserID
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	c := *e
	if e.UserID != nil {
		u := *e.UserID
		c.UserID = &u
	}
	if e.RecipientID != nil {
		r := *e.RecipientID
		c.RecipientID = &r
	}
	if e.Weight != nil {
		w := *e.Weight
		c.Weight = &w
	}
	c.Context = cloneContext(e.Context)
	return &c
}

// String is a convenience constructor for optional identifiers.
func String(s string) *string {
	return &s
}

// Float is a convenience constructor for optional weights.
func Float(f float64) *float64 {
	return &f
}
