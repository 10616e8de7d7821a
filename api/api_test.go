package api_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/api"
	"github.com/papercomputeco/tiermem/pkg/importance"
	"github.com/papercomputeco/tiermem/pkg/longterm"
	"github.com/papercomputeco/tiermem/pkg/recency"
	"github.com/papercomputeco/tiermem/pkg/recency/inmemory"
	"github.com/papercomputeco/tiermem/pkg/tiered"
	testutils "github.com/papercomputeco/tiermem/pkg/utils/test"
)

var _ = Describe("Server", func() {
	var (
		mem    *tiered.Memory
		server *api.Server
	)

	do := func(method, path, body string) (int, []byte) {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		out, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, out
	}

	BeforeEach(func() {
		cache, err := recency.New(recency.Config{Backend: inmemory.New(time.Minute)})
		Expect(err).NotTo(HaveOccurred())
		store, err := longterm.New(longterm.Config{
			Driver:   testutils.NewMockVectorDriver(),
			Embedder: testutils.NewMockEmbedder(),
		})
		Expect(err).NotTo(HaveOccurred())

		mem, err = tiered.New(tiered.Config{
			Recency:  cache,
			LongTerm: store,
			Scorer:   importance.Fixed(8),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mem.Close)

		server, err = api.NewServer(api.Config{
			ListenAddr: ":0",
			MCPHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}),
		}, mem, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a memory", func() {
		_, err := api.NewServer(api.Config{}, nil, nil)
		Expect(err).To(MatchError("memory is required"))
	})

	It("answers ping", func() {
		status, body := do(http.MethodGet, "/ping", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/memories", func() {
		It("accepts a valid entry and writes the recency windows", func() {
			status, _ := do(http.MethodPost, "/v1/memories", `{"owner_id":"u1","actor_id":"p1","content":"I adopted a cat"}`)
			Expect(status).To(Equal(http.StatusAccepted))

			status, body := do(http.MethodGet, "/v1/windows/u1/p1/recent", "")
			Expect(status).To(Equal(http.StatusOK))

			var w api.WindowResponse
			Expect(json.Unmarshal(body, &w)).To(Succeed())
			Expect(w.Window).To(Equal("recent"))
			Expect(w.Records).To(HaveLen(1))
			Expect(w.Lines[0]).To(ContainSubstring("(importance: 5) I adopted a cat"))
		})

		It("rejects entries without an owner", func() {
			status, body := do(http.MethodPost, "/v1/memories", `{"actor_id":"p1","content":"hi"}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("owner id is required"))
		})

		It("rejects malformed bodies", func() {
			status, body := do(http.MethodPost, "/v1/memories", `{"owner_id":`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("invalid request body"))
		})
	})

	Describe("POST /v1/recall", func() {
		It("returns both tiers with recency lines first", func() {
			status, _ := do(http.MethodPost, "/v1/memories", `{"owner_id":"u1","actor_id":"p1","content":"my cat is named Miso"}`)
			Expect(status).To(Equal(http.StatusAccepted))
			mem.Flush()

			status, body := do(http.MethodPost, "/v1/recall", `{"owner_id":"u1","actor_id":"p1","query":"cat named Miso"}`)
			Expect(status).To(Equal(http.StatusOK))

			var r api.RecallResponse
			Expect(json.Unmarshal(body, &r)).To(Succeed())
			Expect(r.Recent).To(HaveLen(1))
			Expect(r.LongTerm).To(HaveLen(1))
			Expect(r.LongTerm[0].Importance).To(Equal(8))
			Expect(r.Lines).To(HaveLen(2))
			Expect(r.Lines[0]).To(ContainSubstring("(importance: 5)"))
			Expect(r.Lines[1]).To(ContainSubstring("(importance: 8)"))
		})

		It("returns empty tiers for an unknown owner", func() {
			status, body := do(http.MethodPost, "/v1/recall", `{"owner_id":"nobody","query":"anything"}`)
			Expect(status).To(Equal(http.StatusOK))

			var r api.RecallResponse
			Expect(json.Unmarshal(body, &r)).To(Succeed())
			Expect(r.Recent).To(BeEmpty())
			Expect(r.LongTerm).To(BeEmpty())
		})

		It("rejects out-of-range limits", func() {
			status, body := do(http.MethodPost, "/v1/recall", `{"owner_id":"u1","query":"x","limit":99}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("limit must be between 0 and 20"))
		})
	})

	Describe("GET /v1/windows", func() {
		It("defaults to the recent window", func() {
			status, body := do(http.MethodGet, "/v1/windows/u1/p1", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"window":"recent"`))
		})

		It("rejects unknown windows", func() {
			status, body := do(http.MethodGet, "/v1/windows/u1/p1/monthly", "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("unknown recency window"))
		})
	})

	It("reports thresholds", func() {
		mem.SetThresholds(6, 4)
		status, body := do(http.MethodGet, "/v1/thresholds", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(bytes.TrimSpace(body)).To(MatchJSON(`{"weekly":6,"promotion":4}`))
	})

	It("serves prometheus metrics", func() {
		status, body := do(http.MethodGet, "/metrics", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("go_goroutines"))
	})

	It("mounts the MCP handler", func() {
		status, _ := do(http.MethodPost, "/mcp", `{}`)
		Expect(status).To(Equal(http.StatusTeapot))
	})
})
