package memory_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/memory"
)

var _ = Describe("Record", func() {
	Describe("ClampImportance", func() {
		DescribeTable("forces values into [1,10]",
			func(in, want int) {
				Expect(memory.ClampImportance(in)).To(Equal(want))
			},
			Entry("below range", -3, 1),
			Entry("zero", 0, 1),
			Entry("lower bound", 1, 1),
			Entry("mid", 6, 6),
			Entry("upper bound", 10, 10),
			Entry("above range", 42, 10),
		)
	})

	Describe("Format", func() {
		It("renders timestamp, type, importance and content", func() {
			r := memory.Record{
				OwnerID:    "u1",
				ActorID:    "Joy",
				Content:    "  we went hiking  ",
				Type:       memory.TypeChat,
				Timestamp:  time.Date(2024, 11, 2, 14, 3, 11, 0, time.UTC),
				Importance: 7,
			}
			Expect(r.Format()).To(Equal("[2024-11-02 14:03:11] [chat] (importance: 7) we went hiking"))
		})

		It("clamps out-of-range importance when rendering", func() {
			r := memory.Record{Type: "event", Importance: 99, Content: "x"}
			Expect(r.Format()).To(ContainSubstring("(importance: 10)"))
		})
	})

	Describe("Scope", func() {
		It("carries owner, actor and topic", func() {
			r := memory.Record{OwnerID: "u1", ActorID: "Anger", TopicTag: "Anger-Joy"}
			Expect(r.Scope()).To(Equal(memory.Scope{OwnerID: "u1", ActorID: "Anger", TopicTag: "Anger-Joy"}))
		})
	})
})

var _ = Describe("Query", func() {
	DescribeTable("NormalizedLimit",
		func(limit, want int) {
			Expect(memory.Query{Limit: limit}.NormalizedLimit()).To(Equal(want))
		},
		Entry("unset uses default", 0, memory.DefaultQueryLimit),
		Entry("negative uses default", -1, memory.DefaultQueryLimit),
		Entry("in range", 3, 3),
		Entry("above max is capped", 500, memory.MaxQueryLimit),
	)
})
