package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/api/mcp"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/preference"
	"github.com/papercomputeco/tastes/pkg/recommend"
	"github.com/papercomputeco/tastes/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tastes/pkg/utils/test"
	"github.com/papercomputeco/tastes/pkg/vector"
)

func textOf(res *sdkmcp.CallToolResult) string {
	Expect(res.Content).NotTo(BeEmpty())
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		ctx         context.Context
		server      *mcp.Server
		driver      *inmemory.Driver
		engine      *preference.Engine
		index       *testutils.MockVectorDriver
		recommender *recommend.Recommender
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		var err error
		engine, err = preference.NewEngine(preference.Config{
			Store:    driver,
			Embedder: testutils.NewMockEmbedder(),
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		index = testutils.NewMockVectorDriver(testutils.TestProvenance)
		Expect(index.Add(ctx, []vector.Document{
			{ProductID: "p1", Embedding: []float32{1, 0}},
			{ProductID: "p2", Embedding: []float32{0, 1}},
		})).To(Succeed())
		recommender = recommend.NewRecommender(engine, index, logger.Nop())

		server, err = mcp.NewServer(mcp.Config{
			States:      engine,
			Recommender: recommender,
			Logger:      logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the state reader is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("state reader is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{States: engine})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("allows a noop server without dependencies", func() {
			s, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools over streamable HTTP", func() {
		var (
			ts      *httptest.Server
			session *sdkmcp.ClientSession
		)

		BeforeEach(func() {
			ts = httptest.NewServer(server.Handler())

			client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.0"}, nil)
			var err error
			session, err = client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: ts.URL}, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(session.Close()).To(Succeed())
			ts.Close()
		})

		It("lists both tools", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("get_preference", "recommend"))
		})

		It("reads a stored preference vector", func() {
			Expect(driver.Write(ctx, testutils.NewTestState("u1", 1, 0.6, 0.8), 0)).To(Succeed())

			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "get_preference",
				Arguments: map[string]any{"user_id": "u1"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out mcp.PreferenceOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Found).To(BeTrue())
			Expect(out.Vector).To(Equal([]float32{0.6, 0.8}))
			Expect(out.Provider).To(Equal("p"))
			Expect(out.Dims).To(Equal(2))
			Expect(out.Version).To(Equal(int64(1)))
		})

		It("reports a missing preference as not found", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "get_preference",
				Arguments: map[string]any{"user_id": "nobody"},
			})
			Expect(err).NotTo(HaveOccurred())

			var out mcp.PreferenceOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Found).To(BeFalse())
		})

		It("ranks products for a user", func() {
			Expect(driver.Write(ctx, testutils.NewTestState("u1", 1, 0, 1), 0)).To(Succeed())

			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "recommend",
				Arguments: map[string]any{"user_id": "u1", "top_k": 1},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out mcp.RecommendOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Products[0].ProductID).To(Equal("p2"))
		})

		It("returns a tool error for a user without preferences", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "recommend",
				Arguments: map[string]any{"user_id": "nobody"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("no preference vector"))
		})
	})
})
