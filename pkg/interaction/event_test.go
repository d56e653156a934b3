package interaction_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/vector"
)

var _ = Describe("Event", func() {
	Describe("Validate", func() {
		It("requires a product id", func() {
			e := &interaction.Event{Action: interaction.ActionView}
			Expect(e.Validate()).To(MatchError(interaction.ErrInvalidEvent))
		})

		It("requires an action", func() {
			e := &interaction.Event{ProductID: "p1"}
			Expect(e.Validate()).To(MatchError(interaction.ErrInvalidEvent))
		})

		It("accepts an anonymous event", func() {
			e := &interaction.Event{ProductID: "p1", Action: interaction.ActionView}
			Expect(e.Validate()).To(Succeed())
			Expect(e.Anonymous()).To(BeTrue())
			Expect(e.HasUser()).To(BeFalse())
		})

		It("treats a recipient-only event as not anonymous but without a user", func() {
			e := &interaction.Event{
				ProductID:   "p1",
				Action:      interaction.ActionClick,
				RecipientID: interaction.String("r1"),
			}
			Expect(e.Anonymous()).To(BeFalse())
			Expect(e.HasUser()).To(BeFalse())
		})
	})

	Describe("Clone", func() {
		It("does not share optional fields or context slices", func() {
			e := &interaction.Event{
				UserID:    interaction.String("u1"),
				ProductID: "p1",
				Action:    interaction.ActionView,
				Weight:    interaction.Float(3),
				Context: interaction.VectorContext{
					Vector:     []float32{1, 0},
					Provenance: vector.Provenance{Provider: "p", Model: "m", Dims: 2},
				},
			}
			c := e.Clone()
			*c.UserID = "u2"
			*c.Weight = 5
			c.Context.(interaction.VectorContext).Vector[0] = 9

			Expect(e.User()).To(Equal("u1"))
			Expect(*e.Weight).To(Equal(3.0))
			Expect(e.Context.(interaction.VectorContext).Vector[0]).To(Equal(float32(1)))
		})
	})

	Describe("JSON", func() {
		It("encodes the context as a tagged object", func() {
			e := interaction.Event{
				ProductID: "p1",
				Action:    interaction.ActionPurchase,
				Context:   interaction.TextContext{Text: "red running shoes"},
			}
			b, err := json.Marshal(e)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(ContainSubstring(`"context":{"kind":"text","text":"red running shoes"}`))
			Expect(string(b)).NotTo(ContainSubstring("timestamp"))
		})

		It("decodes each context kind", func() {
			var e interaction.Event
			Expect(json.Unmarshal([]byte(`{
				"user_id": "u1",
				"product_id": "p1",
				"action": "view",
				"context": {"kind": "product", "title": "Trail boots", "tags": ["outdoor"]}
			}`), &e)).To(Succeed())
			Expect(e.User()).To(Equal("u1"))
			Expect(e.Context).To(Equal(interaction.ProductContext{Title: "Trail boots", Tags: []string{"outdoor"}}))

			Expect(json.Unmarshal([]byte(`{
				"product_id": "p2",
				"action": "click",
				"context": {"kind": "vector", "vector": [0.5, 0.5], "provenance": {"provider": "p", "model": "m", "dims": 2}}
			}`), &e)).To(Succeed())
			vc, ok := interaction.Precomputed(&e)
			Expect(ok).To(BeTrue())
			Expect(vc.Vector).To(Equal([]float32{0.5, 0.5}))
			Expect(vc.Provenance.Dims).To(Equal(2))
		})

		It("rejects an unknown context kind", func() {
			var e interaction.Event
			err := json.Unmarshal([]byte(`{"product_id":"p1","action":"view","context":{"kind":"props","a":1}}`), &e)
			Expect(err).To(MatchError(interaction.ErrInvalidEvent))
		})

		It("rejects a vector context whose length disagrees with its dims", func() {
			var e interaction.Event
			err := json.Unmarshal([]byte(`{
				"product_id": "p1",
				"action": "view",
				"context": {"kind": "vector", "vector": [1], "provenance": {"provider": "p", "model": "m", "dims": 2}}
			}`), &e)
			Expect(err).To(MatchError(interaction.ErrInvalidEvent))
		})
	})

	Describe("EmbeddingText", func() {
		It("joins product fields", func() {
			e := &interaction.Event{ProductID: "p1", Context: interaction.ProductContext{
				Title: "Trail boots", Description: "Waterproof", Tags: []string{"outdoor", "hiking"},
			}}
			Expect(interaction.EmbeddingText(e)).To(Equal("Trail boots\nWaterproof\noutdoor, hiking"))
		})

		It("falls back to the product id", func() {
			Expect(interaction.EmbeddingText(&interaction.Event{ProductID: "p1"})).To(Equal("p1"))
		})
	})
})
