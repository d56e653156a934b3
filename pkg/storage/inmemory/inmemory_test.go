package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tastes/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("does not share vectors with callers", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		s := testutils.NewTestState("u1", 1, 1, 0)
		Expect(d.Write(ctx, s, 0)).To(Succeed())

		s.Vector[0] = 9
		got, err := d.Read(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Vector[0]).To(Equal(float32(1)))

		got.Vector[1] = 9
		again, err := d.Read(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Vector[1]).To(Equal(float32(0)))
	})

	It("reports a cancelled context as unavailable", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := inmemory.NewDriver().Read(ctx, "u1")
		Expect(err).To(MatchError(storage.ErrUnavailable))
	})
})
