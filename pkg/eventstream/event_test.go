package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/eventstream"
	"github.com/papercomputeco/tastes/pkg/interaction"
	testutils "github.com/papercomputeco/tastes/pkg/utils/test"
)

var _ = Describe("Event", func() {
	It("marshals InteractionLoggedEvent with expected top-level keys", func() {
		e := testutils.NewTestEvent("u1", "p1", interaction.ActionView)
		payload, err := json.Marshal(eventstream.NewInteractionLogged(e))
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("interaction"))
	})

	It("marshals PreferenceUpdatedEvent with the committed state", func() {
		s := testutils.NewTestState("u1", 2, 0.6, 0.8)
		ev := eventstream.NewPreferenceUpdated(s, "evt_1")
		Expect(ev.Key()).To(Equal("u1"))

		payload, err := json.Marshal(ev)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got["event_type"]).To(Equal(eventstream.EventTypePreferenceUpdated))
		Expect(got["cause_event_id"]).To(Equal("evt_1"))
		Expect(got["version"]).To(BeNumerically("==", 2))
		Expect(got).To(HaveKey("provenance"))
	})

	It("keys anonymous interactions by product", func() {
		ev := eventstream.NewInteractionLogged(&interaction.Event{ProductID: "p9", Action: interaction.ActionView})
		Expect(ev.Key()).To(Equal("p9"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeInteractionLogged).To(Equal("tastes.interaction.logged"))
		Expect(eventstream.EventTypePreferenceUpdated).To(Equal("tastes.preference.updated"))
	})
})
