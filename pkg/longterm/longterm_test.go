package longterm_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/longterm"
	"github.com/papercomputeco/tiermem/pkg/memory"
	testutils "github.com/papercomputeco/tiermem/pkg/utils/test"
)

var _ = Describe("Store", func() {
	var (
		ctx      context.Context
		driver   *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		store    *longterm.Store
		now      time.Time
	)

	record := func(owner, actor, content string, importance int) memory.Record {
		return memory.Record{
			OwnerID:    owner,
			ActorID:    actor,
			Content:    content,
			Type:       memory.TypeChat,
			Timestamp:  now,
			Importance: importance,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 11, 2, 14, 3, 11, 0, time.UTC)
		driver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()

		var err error
		store, err = longterm.New(longterm.Config{Driver: driver, Embedder: embedder})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("requires a driver and an embedder", func() {
			_, err := longterm.New(longterm.Config{Embedder: embedder})
			Expect(err).To(HaveOccurred())
			_, err = longterm.New(longterm.Config{Driver: driver})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("CollectionName", func() {
		It("keeps a readable, sanitized owner id", func() {
			Expect(longterm.CollectionName("u1")).To(MatchRegexp(`^user_u1_[0-9a-f]{12}_memories$`))
			Expect(longterm.CollectionName("Jane.Doe@example.com")).To(MatchRegexp(`^user_jane_doe_example_com_[0-9a-f]{12}_memories$`))
			Expect(longterm.CollectionName("u1")).To(Equal(longterm.CollectionName("u1")))
			Expect(longterm.IsCollection(longterm.CollectionName("u1"))).To(BeTrue())
			Expect(longterm.IsCollection("nodes")).To(BeFalse())
		})

		It("gives owners that sanitize alike their own collection", func() {
			names := map[string]bool{}
			for _, owner := range []string{"A.b", "a_b", "a b", "a:b"} {
				names[longterm.CollectionName(owner)] = true
			}
			Expect(names).To(HaveLen(4))
		})

		It("stays within collection name limits for long ids", func() {
			name := longterm.CollectionName(strings.Repeat("owner", 40))
			Expect(len(name)).To(BeNumerically("<=", 63))
			Expect(longterm.IsCollection(name)).To(BeTrue())
		})
	})

	Describe("Store", func() {
		It("writes the record with metadata into the owner's collection", func() {
			id, err := store.Store(ctx, record("u1", "p1", "I adopted a cat named Miso", 8))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(HavePrefix("u1_chat_p1_"))

			docs := driver.Documents(longterm.CollectionName("u1"))
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal(id))
			Expect(docs[0].Content).To(Equal("I adopted a cat named Miso"))
			Expect(docs[0].Metadata).To(Equal(map[string]string{
				"timestamp":  "2024-11-02T14:03:11Z",
				"type":       "chat",
				"actor_id":   "p1",
				"owner_id":   "u1",
				"importance": "8",
				"topic_tag":  "",
			}))
		})

		It("assigns distinct ids to identical records", func() {
			rec := record("u1", "p1", "same words", 6)
			a, err := store.Store(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			b, err := store.Store(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			Expect(a).NotTo(Equal(b))
			Expect(driver.Documents(longterm.CollectionName("u1"))).To(HaveLen(2))
		})

		It("writes nothing when embedding fails", func() {
			embedder.FailOn = "unembeddable"
			_, err := store.Store(ctx, record("u1", "p1", "unembeddable", 9))
			Expect(err).To(HaveOccurred())
			Expect(driver.Documents(longterm.CollectionName("u1"))).To(BeEmpty())
		})

		It("returns driver failures", func() {
			driver.Err = errors.New("backend down")
			_, err := store.Store(ctx, record("u1", "p1", "hello", 9))
			Expect(err).To(MatchError(ContainSubstring("backend down")))
		})

		It("rejects records without an owner or content", func() {
			_, err := store.Store(ctx, record("", "p1", "hello", 9))
			Expect(err).To(MatchError(memory.ErrOwnerRequired))
			_, err = store.Store(ctx, record("u1", "p1", "   ", 9))
			Expect(err).To(MatchError(memory.ErrEmptyContent))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			for _, r := range []memory.Record{
				record("u1", "p1", "I adopted a cat named Miso", 8),
				record("u1", "p2", "my sister visits in March", 6),
				record("u1", "p1", "work has been stressful lately", 5),
				record("u2", "p1", "I also adopted a cat", 9),
			} {
				_, err := store.Store(ctx, r)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("ranks by similarity within the owner's collection", func() {
			records := store.Query(ctx, memory.Query{OwnerID: "u1", Text: "adopted cat"})
			Expect(records).NotTo(BeEmpty())
			Expect(records[0].Content).To(Equal("I adopted a cat named Miso"))
			for _, r := range records {
				Expect(r.OwnerID).To(Equal("u1"))
			}
		})

		It("restores record fields from metadata", func() {
			records := store.Query(ctx, memory.Query{OwnerID: "u1", Text: "cat named Miso", Limit: 1})
			Expect(records).To(HaveLen(1))
			Expect(records[0].ActorID).To(Equal("p1"))
			Expect(records[0].Importance).To(Equal(8))
			Expect(records[0].Timestamp.Equal(now)).To(BeTrue())
			Expect(records[0].ID).To(HavePrefix("u1_chat_p1_"))
		})

		It("applies the actor and type filters", func() {
			records := store.Query(ctx, memory.Query{OwnerID: "u1", Text: "cat", ActorID: "p2"})
			Expect(records).To(HaveLen(1))
			Expect(records[0].Content).To(Equal("my sister visits in March"))

			Expect(store.Query(ctx, memory.Query{OwnerID: "u1", Text: "cat", Type: memory.TypeDebate})).To(BeEmpty())
		})

		It("bounds the number of results", func() {
			Expect(store.Query(ctx, memory.Query{OwnerID: "u1", Text: "cat", Limit: 2})).To(HaveLen(2))
		})

		It("returns the newest records for a blank query", func() {
			_, err := store.Store(ctx, memory.Record{
				OwnerID: "u1", ActorID: "p1", Content: "newest", Type: memory.TypeChat,
				Timestamp: now.Add(time.Hour), Importance: 5,
			})
			Expect(err).NotTo(HaveOccurred())

			records := store.Query(ctx, memory.Query{OwnerID: "u1", Limit: 1})
			Expect(records).To(HaveLen(1))
			Expect(records[0].Content).To(Equal("newest"))
		})

		It("returns nothing for an unknown owner", func() {
			Expect(store.Query(ctx, memory.Query{OwnerID: "nobody", Text: "cat"})).To(BeEmpty())
		})

		It("returns an empty slice when the backend fails", func() {
			driver.Err = errors.New("backend down")
			records := store.Query(ctx, memory.Query{OwnerID: "u1", Text: "cat"})
			Expect(records).NotTo(BeNil())
			Expect(records).To(BeEmpty())
		})

		It("returns an empty slice when embedding fails", func() {
			embedder.Err = errors.New("embedder down")
			Expect(store.Query(ctx, memory.Query{OwnerID: "u1", Text: "cat"})).To(BeEmpty())
		})
	})

	Describe("Prune", func() {
		It("deletes old, unimportant records and keeps the rest", func() {
			old := now.Add(-100 * 24 * time.Hour)
			for _, r := range []memory.Record{
				{OwnerID: "u1", ActorID: "p1", Content: "old trivia", Type: "chat", Timestamp: old, Importance: 5},
				{OwnerID: "u1", ActorID: "p1", Content: "old milestone", Type: "chat", Timestamp: old, Importance: 9},
				{OwnerID: "u1", ActorID: "p1", Content: "fresh trivia", Type: "chat", Timestamp: now, Importance: 5},
				{OwnerID: "u2", ActorID: "p1", Content: "old other owner", Type: "chat", Timestamp: old, Importance: 6},
			} {
				_, err := store.Store(ctx, r)
				Expect(err).NotTo(HaveOccurred())
			}

			n, err := store.Prune(ctx, now.Add(-90*24*time.Hour), 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			var left []string
			for _, d := range driver.Documents(longterm.CollectionName("u1")) {
				left = append(left, d.Content)
			}
			Expect(strings.Join(left, ",")).To(Equal("old milestone,fresh trivia"))
			Expect(driver.Documents(longterm.CollectionName("u2"))).To(BeEmpty())
		})

		It("reports listing failures", func() {
			driver.Err = errors.New("backend down")
			_, err := store.Prune(ctx, now, 8)
			Expect(err).To(HaveOccurred())
		})
	})
})
