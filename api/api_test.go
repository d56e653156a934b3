package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/ingest"
	"github.com/papercomputeco/tastes/ingest/worker"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/preference"
	"github.com/papercomputeco/tastes/pkg/recommend"
	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tastes/pkg/utils/test"
	"github.com/papercomputeco/tastes/pkg/vector"
)

func doRequest(server *Server, method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			payload, err := json.Marshal(b)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(payload)
		}
	}

	req, err := http.NewRequest(method, path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	respBody, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, respBody
}

var _ = Describe("Server", func() {
	var (
		server   *Server
		driver   *inmemory.Driver
		embedder *testutils.MockEmbedder
		engine   *preference.Engine
		index    *testutils.MockVectorDriver
		svc      *ingest.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		embedder = testutils.NewMockEmbedder().Set("p1", 1, 0).Set("p2", 0, 1)

		var err error
		engine, err = preference.NewEngine(preference.Config{
			Store:    driver,
			Embedder: embedder,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		svc, err = ingest.NewService(ingest.Config{Log: driver, Engine: engine, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		index = testutils.NewMockVectorDriver(testutils.TestProvenance)
		Expect(index.Add(ctx, []vector.Document{
			{ProductID: "p1", Embedding: []float32{1, 0}},
			{ProductID: "p2", Embedding: []float32{0, 1}},
			{ProductID: "p3", Embedding: []float32{0.8, 0.6}},
		})).To(Succeed())

		server, err = NewServer(Config{ListenAddr: ":0"}, Dependencies{
			Ingest:      svc,
			States:      engine,
			Recommender: recommend.NewRecommender(engine, index, logger.Nop()),
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires an ingest service", func() {
			_, err := NewServer(Config{}, Dependencies{States: engine}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("ingest service is required")))
		})

		It("requires a state reader", func() {
			_, err := NewServer(Config{}, Dependencies{Ingest: svc}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("state reader is required")))
		})
	})

	It("responds to ping", func() {
		resp, body := doRequest(server, http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/interactions", func() {
		It("applies the event synchronously when asked", func() {
			resp, body := doRequest(server, http.MethodPost, "/v1/interactions?sync=true",
				`{"user_id":"u1","product_id":"p1","action":"purchase"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var ack ingest.Ack
			Expect(json.Unmarshal(body, &ack)).To(Succeed())
			Expect(ack.EventID).NotTo(BeEmpty())
			Expect(ack.State).NotTo(BeNil())
			Expect(ack.State.Version).To(Equal(int64(1)))
			Expect(ack.State.Provenance).To(Equal(testutils.TestProvenance))

			entries, err := driver.List(ctx, storage.ListOpts{})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(string(entries[0].Event.Source)).To(Equal("api"))
		})

		It("accepts a tagged context", func() {
			resp, body := doRequest(server, http.MethodPost, "/v1/interactions?sync=true",
				`{"user_id":"u1","product_id":"p9","action":"view",
				  "context":{"kind":"vector","vector":[0,1],"provenance":{"provider":"p","model":"m","dims":2}}}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var ack ingest.Ack
			Expect(json.Unmarshal(body, &ack)).To(Succeed())
			Expect(ack.State.Vector).To(Equal([]float32{0, 1}))
			Expect(embedder.Calls()).To(BeZero())
		})

		It("queues the update when a worker pool is configured", func() {
			pool, err := worker.NewPool(&worker.Config{Engine: engine, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			svc, err = ingest.NewService(ingest.Config{Log: driver, Engine: engine, Pool: pool, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			server, err = NewServer(Config{}, Dependencies{Ingest: svc, States: engine}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, body := doRequest(server, http.MethodPost, "/v1/interactions",
				`{"user_id":"u1","product_id":"p1","action":"view"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))

			var ack ingest.Ack
			Expect(json.Unmarshal(body, &ack)).To(Succeed())
			Expect(ack.Queued).To(BeTrue())

			pool.Close()
			_, err = driver.Read(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns 400 for an event missing required fields", func() {
			resp, body := doRequest(server, http.MethodPost, "/v1/interactions", `{"user_id":"u1"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Code).To(Equal(ingest.CodeInvalidEvent))
		})

		It("returns 400 for an unknown context kind", func() {
			resp, _ := doRequest(server, http.MethodPost, "/v1/interactions",
				`{"product_id":"p1","action":"view","context":{"kind":"audio"}}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 503 with the logged event id when embedding fails", func() {
			embedder.FailOn = "p1"

			resp, body := doRequest(server, http.MethodPost, "/v1/interactions?sync=true",
				`{"user_id":"u1","product_id":"p1","action":"view"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Code).To(Equal(ingest.CodeEmbeddingUnavailable))
			Expect(errResp.EventID).NotTo(BeEmpty())
		})
	})

	Describe("GET /v1/users/:id/preference", func() {
		It("returns 404 for a user without state", func() {
			resp, _ := doRequest(server, http.MethodGet, "/v1/users/nobody/preference", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns the stored state with provenance", func() {
			Expect(driver.Write(ctx, testutils.NewTestState("u1", 1, 0.6, 0.8), 0)).To(Succeed())

			resp, body := doRequest(server, http.MethodGet, "/v1/users/u1/preference", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var pr PreferenceResponse
			Expect(json.Unmarshal(body, &pr)).To(Succeed())
			Expect(pr.State.Vector).To(Equal([]float32{0.6, 0.8}))
			Expect(pr.State.Provenance).To(Equal(testutils.TestProvenance))
			Expect(pr.State.Version).To(Equal(int64(1)))
		})
	})

	Describe("GET /v1/users/:id/recommendations", func() {
		BeforeEach(func() {
			Expect(driver.Write(ctx, testutils.NewTestState("u1", 1, 1, 0), 0)).To(Succeed())
		})

		It("ranks products and honors exclude", func() {
			resp, body := doRequest(server, http.MethodGet, "/v1/users/u1/recommendations?top_k=2&exclude=p1", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var rr RecommendationsResponse
			Expect(json.Unmarshal(body, &rr)).To(Succeed())
			Expect(rr.Count).To(Equal(2))
			Expect(rr.Products[0].ProductID).To(Equal("p3"))
			Expect(rr.Products[1].ProductID).To(Equal("p2"))
		})

		It("returns 404 for a user without state", func() {
			resp, _ := doRequest(server, http.MethodGet, "/v1/users/nobody/recommendations", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 409 when the state is from another embedding space", func() {
			s := testutils.NewTestState("u2", 1, 1, 0)
			s.Provenance.Model = "other"
			Expect(driver.Write(ctx, s, 0)).To(Succeed())

			resp, _ := doRequest(server, http.MethodGet, "/v1/users/u2/recommendations", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		})

		It("returns 503 without a vector store", func() {
			var err error
			server, err = NewServer(Config{}, Dependencies{Ingest: svc, States: engine}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, _ := doRequest(server, http.MethodGet, "/v1/users/u1/recommendations", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})
})
