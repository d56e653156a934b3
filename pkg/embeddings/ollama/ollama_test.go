package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/embeddings/ollama"
	"github.com/papercomputeco/tastes/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		status   int
		response string
		lastReq  map[string]any
		lastPath string
	)

	BeforeEach(func() {
		status = http.StatusOK
		response = `{"embeddings": [[0.25, 0.5, 0.75]]}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&lastReq)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(response))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("defaults the model and dimensions", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Provenance()).To(Equal(vector.Provenance{
			Provider: "ollama", Model: ollama.DefaultEmbeddingModel, Dims: ollama.DefaultDimensions,
		}))
	})

	It("requires dimensions for a custom model", func() {
		_, err := ollama.NewEmbedder(ollama.EmbedderConfig{Model: "all-minilm"})
		Expect(err).To(HaveOccurred())
	})

	It("embeds text", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "tiny", Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(context.Background(), "trail boots")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{0.25, 0.5, 0.75}))
		Expect(lastPath).To(Equal("/api/embed"))
		Expect(lastReq["model"]).To(Equal("tiny"))
		Expect(lastReq["input"]).To(Equal("trail boots"))
	})

	It("rejects a vector of the wrong size", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "tiny", Dimensions: 4})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "trail boots")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})

	It("wraps server errors", func() {
		status = http.StatusInternalServerError
		response = `model not loaded`
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "tiny", Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "trail boots")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("model not loaded"))
	})

	It("reports an empty response", func() {
		response = `{"embeddings": []}`
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "tiny", Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "trail boots")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
