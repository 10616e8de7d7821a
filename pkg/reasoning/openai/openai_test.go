package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/reasoning"
	"github.com/papercomputeco/tiermem/pkg/reasoning/openai"
)

var _ = Describe("Reasoner", func() {
	var (
		server *httptest.Server
		reply  string
		seen   map[string]any
	)

	BeforeEach(func() {
		seen = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(json.NewDecoder(r.Body).Decode(&seen)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(reply))
		}))
		DeferCleanup(server.Close)
	})

	It("requires an api key", func() {
		_, err := openai.New(openai.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("returns the first choice", func() {
		reply = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"7"},"finish_reason":"stop"}]}`

		r, err := openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
		Expect(err).NotTo(HaveOccurred())

		out, err := r.Complete(context.Background(), "rate this")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("7"))
		Expect(seen).To(HaveKeyWithValue("model", openai.DefaultModel))
	})

	It("reports an empty choice list", func() {
		reply = `{"id":"c1","object":"chat.completion","choices":[]}`

		r, err := openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Complete(context.Background(), "rate this")
		Expect(err).To(MatchError(reasoning.ErrEmptyCompletion))
	})
})
