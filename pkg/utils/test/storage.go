package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/vector"
)

// TestProvenance is a two dimensional embedding space used across tests.
var TestProvenance = vector.Provenance{Provider: "p", Model: "m", Dims: 2}

// NewTestState builds a state in TestProvenance.
func NewTestState(userID string, version int64, v ...float32) *storage.State {
	return &storage.State{
		UserID:     userID,
		Vector:     v,
		Provenance: TestProvenance,
		UpdatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Version:    version,
	}
}

// NewTestEvent builds a named user's event.
func NewTestEvent(userID, productID string, action interaction.Action) *interaction.Event {
	return &interaction.Event{
		UserID:    interaction.String(userID),
		ProductID: productID,
		Action:    action,
		Source:    interaction.SourceWeb,
	}
}

// DescribeDriver registers the behavior every storage.Driver must satisfy.
// open is called before each test and must return an empty driver.
func DescribeDriver(open func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = open()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Append", func() {
		It("rejects an event without a product", func() {
			_, err := driver.Append(ctx, &interaction.Event{Action: interaction.ActionView})
			Expect(err).To(MatchError(interaction.ErrInvalidEvent))
		})

		It("assigns an id and timestamp", func() {
			e := NewTestEvent("u1", "p1", interaction.ActionView)
			id, err := driver.Append(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(e.ID).To(Equal(id))
			Expect(e.Timestamp).NotTo(BeZero())
		})

		It("stamps the ingestion time over a caller supplied timestamp", func() {
			e := NewTestEvent("u1", "p1", interaction.ActionView)
			e.Timestamp = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
			before := time.Now()
			_, err := driver.Append(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Timestamp).To(BeTemporally(">=", before.Add(-time.Second)))

			entries, err := driver.List(ctx, storage.ListOpts{})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Event.Timestamp).To(BeTemporally("~", e.Timestamp, time.Millisecond))
		})

		It("logs anonymous events", func() {
			_, err := driver.Append(ctx, &interaction.Event{ProductID: "p1", Action: interaction.ActionView})
			Expect(err).NotTo(HaveOccurred())

			entries, err := driver.List(ctx, storage.ListOpts{})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Event.UserID).To(BeNil())
		})

		It("records a re-appended event as a new entry", func() {
			e := NewTestEvent("u1", "p1", interaction.ActionPurchase)
			first, err := driver.Append(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			second, err := driver.Append(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))

			entries, err := driver.List(ctx, storage.ListOpts{UserID: "u1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})

		It("round-trips every field", func() {
			e := NewTestEvent("u1", "p1", interaction.ActionClick)
			e.RecipientID = interaction.String("r1")
			e.Weight = interaction.Float(2.5)
			e.Context = interaction.VectorContext{Vector: []float32{0.6, 0.8}, Provenance: TestProvenance}
			_, err := driver.Append(ctx, e)
			Expect(err).NotTo(HaveOccurred())

			entries, err := driver.List(ctx, storage.ListOpts{})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			got := entries[0].Event
			Expect(got.ID).To(Equal(e.ID))
			Expect(got.User()).To(Equal("u1"))
			Expect(*got.RecipientID).To(Equal("r1"))
			Expect(got.ProductID).To(Equal("p1"))
			Expect(got.Action).To(Equal(interaction.ActionClick))
			Expect(got.Source).To(Equal(interaction.SourceWeb))
			Expect(*got.Weight).To(Equal(2.5))
			Expect(got.Context).To(Equal(e.Context))
			Expect(got.Timestamp).To(BeTemporally("~", e.Timestamp, time.Millisecond))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for _, u := range []string{"u1", "u2", "u1", "u1"} {
				_, err := driver.Append(ctx, NewTestEvent(u, "p", interaction.ActionView))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("filters by user in append order", func() {
			entries, err := driver.List(ctx, storage.ListOpts{UserID: "u1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			for _, e := range entries {
				Expect(e.Event.User()).To(Equal("u1"))
			}
		})

		It("pages with cursors", func() {
			page, err := driver.List(ctx, storage.ListOpts{Limit: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(3))

			rest, err := driver.List(ctx, storage.ListOpts{After: page[2].Cursor, Limit: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(HaveLen(1))
			Expect(rest[0].Event.User()).To(Equal("u1"))
		})
	})

	Describe("Read", func() {
		It("returns NotFoundError for an unknown user", func() {
			_, err := driver.Read(ctx, "nobody")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Write", func() {
		It("inserts when absent and reads back bit-exact", func() {
			s := NewTestState("u1", 1, 0.6689647, 0.7432941)
			Expect(driver.Write(ctx, s, 0)).To(Succeed())

			got, err := driver.Read(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Vector).To(Equal(s.Vector))
			Expect(got.Provenance).To(Equal(TestProvenance))
			Expect(got.Version).To(Equal(int64(1)))
			Expect(got.UpdatedAt).To(BeTemporally("~", s.UpdatedAt, time.Millisecond))
		})

		It("conflicts on insert when a row exists", func() {
			Expect(driver.Write(ctx, NewTestState("u1", 1, 1, 0), 0)).To(Succeed())
			err := driver.Write(ctx, NewTestState("u1", 1, 0, 1), 0)
			Expect(err).To(MatchError(storage.ErrVersionConflict))

			got, err := driver.Read(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Vector).To(Equal([]float32{1, 0}))
		})

		It("updates only when the version matches", func() {
			Expect(driver.Write(ctx, NewTestState("u1", 1, 1, 0), 0)).To(Succeed())
			Expect(driver.Write(ctx, NewTestState("u1", 2, 0, 1), 1)).To(Succeed())

			// replaying the same merge against the same expected version
			err := driver.Write(ctx, NewTestState("u1", 2, 0, 1), 1)
			Expect(err).To(MatchError(storage.ErrVersionConflict))

			got, err := driver.Read(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Version).To(Equal(int64(2)))
		})

		It("conflicts on update when no row exists", func() {
			err := driver.Write(ctx, NewTestState("u1", 3, 1, 0), 2)
			Expect(err).To(MatchError(storage.ErrVersionConflict))
			_, err = driver.Read(ctx, "u1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("rejects a state whose version does not follow the expected one", func() {
			err := driver.Write(ctx, NewTestState("u1", 5, 1, 0), 0)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, storage.ErrVersionConflict)).To(BeFalse())
		})

		It("rejects a vector that disagrees with its dims", func() {
			err := driver.Write(ctx, NewTestState("u1", 1, 1, 0, 0), 0)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("lets exactly one concurrent writer win per version", func() {
			Expect(driver.Write(ctx, NewTestState("u1", 1, 1, 0), 0)).To(Succeed())

			const writers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				wins      int
				conflicts int
			)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					err := driver.Write(ctx, NewTestState("u1", 2, float32(i), 1), 1)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, storage.ErrVersionConflict):
						conflicts++
					default:
						Fail("unexpected error: " + err.Error())
					}
				}()
			}
			wg.Wait()

			Expect(wins).To(Equal(1))
			Expect(conflicts).To(Equal(writers - 1))
		})
	})
}
