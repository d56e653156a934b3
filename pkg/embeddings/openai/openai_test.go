package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/embeddings/openai"
	"github.com/papercomputeco/tastes/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		status  int
		body    string
		lastReq map[string]any
	)

	BeforeEach(func() {
		status = http.StatusOK
		body = `{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.6, 0.8]}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&lastReq)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an api key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(MatchError(ContainSubstring("missing api_key")))
	})

	It("defaults the model and dimensions", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Provenance()).To(Equal(vector.Provenance{
			Provider: "openai", Model: openai.DefaultEmbeddingModel, Dims: openai.DefaultDimensions,
		}))
	})

	It("requests the configured dimensions and converts the result", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL, Dimensions: 2})
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(context.Background(), "red running shoes")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{0.6, 0.8}))
		Expect(lastReq["input"]).To(Equal("red running shoes"))
		Expect(lastReq["dimensions"]).To(BeNumerically("==", 2))
	})

	It("rejects a vector of the wrong size", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL, Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "red running shoes")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})

	It("wraps api errors", func() {
		status = http.StatusBadRequest
		body = `{"error": {"message": "bad input", "type": "invalid_request_error"}}`
		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL, Dimensions: 2})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "red running shoes")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
