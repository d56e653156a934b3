package vectorutils

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/vector"
)

var _ = Describe("NewVectorDriver", func() {
	prov := vector.Provenance{Provider: "ollama", Model: "m", Dims: 3}

	It("returns no driver for the none provider", func() {
		d, err := NewVectorDriver(context.Background(), &NewVectorDriverOpts{ProviderType: ProviderNone})
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeNil())
	})

	It("opens a sqlite-vec index", func() {
		d, err := NewVectorDriver(context.Background(), &NewVectorDriverOpts{
			ProviderType: "sqlite",
			TargetURL:    filepath.Join(GinkgoT().TempDir(), "products.db"),
			Provenance:   prov,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Provenance()).To(Equal(prov))
		Expect(d.Close()).To(Succeed())
	})

	It("rejects unknown providers", func() {
		_, err := NewVectorDriver(context.Background(), &NewVectorDriverOpts{ProviderType: "chroma"})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
	})
})

var _ = Describe("splitHostPort", func() {
	It("parses host and port", func() {
		host, port, err := splitHostPort("qdrant.local:6334")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("qdrant.local"))
		Expect(port).To(Equal(6334))
	})

	It("leaves the port zero when absent", func() {
		host, port, err := splitHostPort("qdrant.local")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("qdrant.local"))
		Expect(port).To(BeZero())
	})

	It("rejects a non-numeric port", func() {
		_, _, err := splitHostPort("qdrant.local:http")
		Expect(err).To(HaveOccurred())
	})
})
