package qdrant_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/tiermem/pkg/logger"
	"github.com/papercomputeco/tiermem/pkg/vector"
	"github.com/papercomputeco/tiermem/pkg/vector/qdrant"
)

var _ = Describe("Driver", func() {
	It("requires a target and dimensions", func() {
		_, err := qdrant.NewDriver(qdrant.Config{Dimensions: 3}, logger.Nop())
		Expect(err).To(HaveOccurred())

		_, err = qdrant.NewDriver(qdrant.Config{Target: "localhost"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects a malformed port", func() {
		_, err := qdrant.NewDriver(qdrant.Config{Target: "localhost:grpc", Dimensions: 3}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("invalid qdrant port")))
	})
})

var _ = Describe("PointID", func() {
	It("is deterministic per document id", func() {
		Expect(qdrant.PointID("u1_chat_Joy_1")).To(Equal(qdrant.PointID("u1_chat_Joy_1")))
		Expect(qdrant.PointID("u1_chat_Joy_1")).NotTo(Equal(qdrant.PointID("u1_chat_Joy_2")))
	})
})

var _ = Describe("Conditions", func() {
	It("is nil for an empty filter", func() {
		Expect(qdrant.Conditions(nil)).To(BeNil())
	})

	It("builds sorted keyword matches", func() {
		f := qdrant.Conditions(vector.Filter{"type": "chat", "actor_id": "Joy"})
		Expect(f.GetMust()).To(HaveLen(2))
		Expect(f.GetMust()[0].GetField().GetKey()).To(Equal("actor_id"))
		Expect(f.GetMust()[0].GetField().GetMatch().GetKeyword()).To(Equal("Joy"))
		Expect(f.GetMust()[1].GetField().GetKey()).To(Equal("type"))
	})
})

var _ = Describe("Payload", func() {
	It("round-trips a document without its embedding", func() {
		doc := vector.Document{
			ID:       "u1_chat_Joy_1",
			Content:  "we went hiking",
			Metadata: map[string]string{"type": "chat", "importance": "7"},
		}

		restored := qdrant.FromPayload(qc.NewValueMap(qdrant.Payload(doc)))
		Expect(restored).To(Equal(doc))
	})
})
