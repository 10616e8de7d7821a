package tiered_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/eventstream"
	"github.com/papercomputeco/tiermem/pkg/importance"
	"github.com/papercomputeco/tiermem/pkg/longterm"
	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/recency"
	"github.com/papercomputeco/tiermem/pkg/recency/inmemory"
	"github.com/papercomputeco/tiermem/pkg/tiered"
	testutils "github.com/papercomputeco/tiermem/pkg/utils/test"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MemoryPromotedEvent
}

func (p *recordingPublisher) PublishPromotion(_ context.Context, e *eventstream.MemoryPromotedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []*eventstream.MemoryPromotedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.MemoryPromotedEvent(nil), p.events...)
}

func (p *recordingPublisher) Close() error { return nil }

var _ = Describe("Memory", func() {
	var (
		ctx       context.Context
		clk       *clock
		scores    map[string]int
		scoresMu  sync.Mutex
		driver    *testutils.MockVectorDriver
		embedder  *testutils.MockEmbedder
		publisher *recordingPublisher
		mem       *tiered.Memory
	)

	score := func(content string, n int) {
		scoresMu.Lock()
		defer scoresMu.Unlock()
		scores[content] = n
	}

	build := func(scorer importance.Scorer, mutate func(*tiered.Config)) *tiered.Memory {
		cache, err := recency.New(recency.Config{
			Backend: inmemory.New(time.Minute, inmemory.WithClock(clk.Now)),
		})
		Expect(err).NotTo(HaveOccurred())

		store, err := longterm.New(longterm.Config{Driver: driver, Embedder: embedder})
		Expect(err).NotTo(HaveOccurred())

		cfg := tiered.Config{
			Recency:   cache,
			LongTerm:  store,
			Scorer:    scorer,
			Publisher: publisher,
			Now:       clk.Now,
		}
		if mutate != nil {
			mutate(&cfg)
		}

		m, err := tiered.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(m.Close)
		return m
	}

	remember := func(owner, actor, content string) {
		Expect(mem.Remember(ctx, tiered.Entry{OwnerID: owner, ActorID: actor, Content: content})).To(Succeed())
		clk.Advance(time.Second)
	}

	window := func(owner, actor, w string) []memory.Record {
		records, err := mem.ShortTerm(ctx, tiered.ShortTermRequest{OwnerID: owner, ActorID: actor, Window: w})
		Expect(err).NotTo(HaveOccurred())
		return records
	}

	BeforeEach(func() {
		ctx = context.Background()
		clk = &clock{now: time.Date(2024, 11, 2, 14, 0, 0, 0, time.UTC)}
		scores = map[string]int{}
		driver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		publisher = &recordingPublisher{}

		mem = build(importance.ScorerFunc(func(_ context.Context, content string) int {
			scoresMu.Lock()
			defer scoresMu.Unlock()
			if n, ok := scores[content]; ok {
				return n
			}
			return memory.ProvisionalImportance
		}), nil)
	})

	Describe("New", func() {
		It("requires every tier and a scorer", func() {
			_, err := tiered.New(tiered.Config{})
			Expect(err).To(HaveOccurred())
		})

		It("uses the default thresholds", func() {
			weekly, promotion := mem.Thresholds()
			Expect(weekly).To(Equal(7))
			Expect(promotion).To(Equal(5))
		})
	})

	Describe("Remember", func() {
		It("validates the entry", func() {
			Expect(mem.Remember(ctx, tiered.Entry{ActorID: "p1", Content: "x"})).To(MatchError(memory.ErrOwnerRequired))
			Expect(mem.Remember(ctx, tiered.Entry{OwnerID: "u1", Content: "x"})).To(MatchError(memory.ErrActorRequired))
			Expect(mem.Remember(ctx, tiered.Entry{OwnerID: "u1", ActorID: "p1", Content: "  "})).To(MatchError(memory.ErrEmptyContent))
		})

		It("writes recent and today synchronously with a provisional importance", func() {
			score("I got the job", 9)
			remember("u1", "p1", "I got the job")

			recent := window("u1", "p1", "recent")
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].Importance).To(Equal(memory.ProvisionalImportance))
			Expect(recent[0].Type).To(Equal(memory.TypeChat))
			Expect(window("u1", "p1", "today")).To(HaveLen(1))
		})

		It("keeps accepting writes when the scoring queue is full", func() {
			release := make(chan struct{})
			blocked := build(importance.ScorerFunc(func(context.Context, string) int {
				<-release
				return 9
			}), func(c *tiered.Config) {
				c.NumWorkers = 1
				c.QueueSize = 1
			})
			defer close(release)

			for i := range 5 {
				Expect(blocked.Remember(ctx, tiered.Entry{OwnerID: "u1", ActorID: "p1", Content: fmt.Sprintf("m%d", i)})).To(Succeed())
			}
			records, err := blocked.ShortTerm(ctx, tiered.ShortTermRequest{OwnerID: "u1", ActorID: "p1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(5))
		})
	})

	Describe("threshold gating", func() {
		It("promotes nothing at score 4", func() {
			score("meh", 4)
			remember("u1", "p1", "meh")
			mem.Flush()

			Expect(window("u1", "p1", "weekly")).To(BeEmpty())
			Expect(driver.Documents(longterm.CollectionName("u1"))).To(BeEmpty())
			Expect(publisher.Events()).To(BeEmpty())
		})

		It("writes long-term only at score 6", func() {
			score("had lunch with Sam", 6)
			remember("u1", "p1", "had lunch with Sam")
			mem.Flush()

			Expect(window("u1", "p1", "weekly")).To(BeEmpty())
			Expect(driver.Documents(longterm.CollectionName("u1"))).To(HaveLen(1))
		})

		It("writes weekly and long-term at score 8", func() {
			score("we are moving to Lisbon", 8)
			remember("u1", "p1", "we are moving to Lisbon")
			mem.Flush()

			weekly := window("u1", "p1", "weekly")
			Expect(weekly).To(HaveLen(1))
			Expect(weekly[0].Importance).To(Equal(8))

			docs := driver.Documents(longterm.CollectionName("u1"))
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Metadata).To(HaveKeyWithValue("importance", "8"))

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Tiers).To(Equal([]string{eventstream.TierWeekly, eventstream.TierLongTerm}))
			Expect(events[0].Memory.LongTermID).To(Equal(docs[0].ID))
		})

		It("honours independently configured thresholds", func() {
			mem.SetThresholds(6, 7)
			score("tried a new recipe", 6)
			remember("u1", "p1", "tried a new recipe")
			mem.Flush()

			Expect(window("u1", "p1", "weekly")).To(HaveLen(1))
			Expect(driver.Documents(longterm.CollectionName("u1"))).To(BeEmpty())
		})

		It("falls back to the neutral score when the reasoner misbehaves", func() {
			scorer, err := importance.New(importance.Config{
				Reasoner: testutils.NewScriptedReasoner("I'd say about a seven"),
			})
			Expect(err).NotTo(HaveOccurred())
			mem = build(scorer, nil)

			remember("u1", "p1", "the weather is nice")
			mem.Flush()

			Expect(window("u1", "p1", "weekly")).To(BeEmpty())
			docs := driver.Documents(longterm.CollectionName("u1"))
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Metadata).To(HaveKeyWithValue("importance", "5"))
		})

		It("does not publish long-term promotion when the write fails", func() {
			embedder.Err = errors.New("embedder down")
			score("big news", 6)
			remember("u1", "p1", "big news")
			mem.Flush()

			Expect(publisher.Events()).To(BeEmpty())
		})
	})

	Describe("Recall", func() {
		It("requires an owner", func() {
			_, err := mem.Recall(ctx, tiered.RecallRequest{Query: "x"})
			Expect(err).To(MatchError(memory.ErrOwnerRequired))
		})

		It("returns an empty result for a new owner", func() {
			lines, err := mem.Recall(ctx, tiered.RecallRequest{OwnerID: "fresh", ActorID: "p1", Query: "anything"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).NotTo(BeNil())
			Expect(lines).To(BeEmpty())
		})

		It("puts recency lines before long-term lines", func() {
			score("my dog Rex learned to fetch", 9)
			remember("u1", "p1", "my dog Rex learned to fetch")
			remember("u1", "p1", "it rained all day")
			mem.Flush()

			r, err := mem.RecallRecords(ctx, tiered.RecallRequest{OwnerID: "u1", ActorID: "p1", Query: "dog Rex fetch"})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Recent).To(HaveLen(2))
			Expect(r.Recent[0].Content).To(Equal("my dog Rex learned to fetch"))
			Expect(r.Recent[1].Content).To(Equal("it rained all day"))
			Expect(r.LongTerm).NotTo(BeEmpty())
			Expect(r.LongTerm[0].Content).To(Equal("my dog Rex learned to fetch"))

			lines := r.Lines()
			Expect(lines).To(HaveLen(len(r.Recent) + len(r.LongTerm)))
			Expect(lines[0]).To(ContainSubstring("(importance: 5) my dog Rex"))
			Expect(lines[2]).To(ContainSubstring("(importance: 9) my dog Rex"))
		})

		It("skips the recency tier without an actor", func() {
			score("salient fact", 9)
			remember("u1", "p1", "salient fact")
			mem.Flush()

			r, err := mem.RecallRecords(ctx, tiered.RecallRequest{OwnerID: "u1", Query: "salient fact"})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Recent).To(BeEmpty())
			Expect(r.LongTerm).To(HaveLen(1))
		})

		It("applies the type filter to both tiers", func() {
			Expect(mem.Remember(ctx, tiered.Entry{OwnerID: "u1", ActorID: "p1", Content: "cats beat dogs", Type: memory.TypeDebate})).To(Succeed())
			remember("u1", "p1", "plain chat")
			mem.Flush()

			r, err := mem.RecallRecords(ctx, tiered.RecallRequest{OwnerID: "u1", ActorID: "p1", Query: "cats", Type: memory.TypeDebate})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Recent).To(HaveLen(1))
			Expect(r.Recent[0].Type).To(Equal(memory.TypeDebate))
			for _, rec := range r.LongTerm {
				Expect(rec.Type).To(Equal(memory.TypeDebate))
			}
		})

		It("still returns the recency portion when the vector backend fails", func() {
			remember("u1", "p1", "first")
			remember("u1", "p1", "second")
			mem.Flush()
			driver.Err = errors.New("vector backend down")

			lines, err := mem.Recall(ctx, tiered.RecallRequest{OwnerID: "u1", ActorID: "p1", Query: "first"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(HaveLen(2))
		})

		It("never returns another owner's records", func() {
			for _, owner := range []string{"u1", "u2", "u3"} {
				score(owner+" secret plan", 9)
				remember(owner, "p1", owner+" secret plan")
				remember(owner, "p1", "shared words about the plan")
			}
			mem.Flush()

			for _, q := range []string{"secret plan", "u2", "shared words", ""} {
				r, err := mem.RecallRecords(ctx, tiered.RecallRequest{OwnerID: "u1", ActorID: "p1", Query: q, Limit: 20})
				Expect(err).NotTo(HaveOccurred())
				for _, rec := range append(r.Recent, r.LongTerm...) {
					Expect(rec.OwnerID).To(Equal("u1"))
				}
			}
		})

		It("never returns another owner's records when ids contain separators", func() {
			remember("a", "b:c", "owner a secret")
			mem.Flush()

			lines, err := mem.Recall(ctx, tiered.RecallRequest{OwnerID: "a:b", ActorID: "c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(BeEmpty())

			lines, err = mem.Recall(ctx, tiered.RecallRequest{OwnerID: "a", ActorID: "b:c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).NotTo(BeEmpty())
		})
	})

	Describe("ShortTerm", func() {
		It("validates the request", func() {
			_, err := mem.ShortTerm(ctx, tiered.ShortTermRequest{ActorID: "p1"})
			Expect(err).To(MatchError(memory.ErrOwnerRequired))
			_, err = mem.ShortTerm(ctx, tiered.ShortTermRequest{OwnerID: "u1"})
			Expect(err).To(MatchError(memory.ErrActorRequired))
			_, err = mem.ShortTerm(ctx, tiered.ShortTermRequest{OwnerID: "u1", ActorID: "p1", Window: "monthly"})
			Expect(err).To(MatchError(recency.ErrUnknownWindow))
		})
	})

	Describe("scenarios", func() {
		It("keeps the 20 most recent of 25 neutral chats and none weekly", func() {
			for i := 1; i <= 25; i++ {
				remember("u1", "Joy", fmt.Sprintf("chat number %d", i))
			}
			mem.Flush()

			recent := window("u1", "Joy", "recent")
			Expect(recent).To(HaveLen(20))
			Expect(recent[0].Content).To(Equal("chat number 25"))
			Expect(recent[19].Content).To(Equal("chat number 6"))
			Expect(window("u1", "Joy", "weekly")).To(BeEmpty())
		})

		It("places a salient memory in every window and in long-term recall", func() {
			score("my grandmother passed away last night", 9)
			remember("u1", "Joy", "my grandmother passed away last night")
			mem.Flush()

			Expect(window("u1", "Joy", "recent")).To(HaveLen(1))
			Expect(window("u1", "Joy", "today")).To(HaveLen(1))
			Expect(window("u1", "Joy", "weekly")).To(HaveLen(1))

			lines, err := mem.Recall(ctx, tiered.RecallRequest{OwnerID: "u1", Query: "grandmother passed away"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(ContainElement(ContainSubstring("my grandmother passed away last night")))
		})

		It("separates owners writing identical content", func() {
			score("we adopted a puppy", 8)
			remember("u1", "Joy", "we adopted a puppy")
			remember("u2", "Joy", "we adopted a puppy")
			mem.Flush()

			r, err := mem.RecallRecords(ctx, tiered.RecallRequest{OwnerID: "u1", Query: "we adopted a puppy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.LongTerm).To(HaveLen(1))
			Expect(r.LongTerm[0].OwnerID).To(Equal("u1"))
		})
	})

	Describe("InvokeTool", func() {
		It("returns descriptive errors for malformed input", func() {
			out := mem.InvokeTool(ctx, `{"query": "cats"`)
			Expect(out).To(HavePrefix("Error: invalid recall request"))

			out = mem.InvokeTool(ctx, `{"query": "cats"}`)
			Expect(out).To(ContainSubstring("owner id is required"))
		})

		It("reports when nothing is found", func() {
			Expect(mem.InvokeTool(ctx, `{"owner_id": "nobody", "query": "cats"}`)).To(Equal(tiered.NoMemories))
		})

		It("defaults to the tool limit for long-term results", func() {
			for i := range 5 {
				content := fmt.Sprintf("travel memory %d", i)
				score(content, 8)
				remember("u1", "p1", content)
			}
			mem.Flush()

			out := mem.InvokeTool(ctx, `{"owner_id": "u1", "query": "travel memory"}`)
			Expect(strings.Split(out, "\n")).To(HaveLen(tiered.DefaultToolLimit))

			out = mem.InvokeTool(ctx, `{"owner_id": "u1", "query": "travel memory", "limit": 4}`)
			Expect(strings.Split(out, "\n")).To(HaveLen(4))
		})
	})
})

var _ = Describe("ParseRecallRequest", func() {
	It("decodes a complete request", func() {
		req, err := tiered.ParseRecallRequest(` {"owner_id":"u1","query":"cats","actor_id":"p1","type":"chat","topic_tag":"pets","limit":4} `)
		Expect(err).NotTo(HaveOccurred())
		Expect(req).To(Equal(tiered.RecallRequest{
			OwnerID: "u1", Query: "cats", ActorID: "p1", Type: "chat", TopicTag: "pets", Limit: 4,
		}))
	})

	DescribeTable("rejects bad input",
		func(input string) {
			_, err := tiered.ParseRecallRequest(input)
			Expect(err).To(MatchError(tiered.ErrInvalidRequest))
		},
		Entry("empty", "  "),
		Entry("not json", "owner u1, query cats"),
		Entry("unknown field", `{"owner_id":"u1","query":"cats","colour":"red"}`),
		Entry("missing owner", `{"query":"cats"}`),
		Entry("negative limit", `{"owner_id":"u1","limit":-1}`),
		Entry("limit too large", `{"owner_id":"u1","limit":21}`),
		Entry("trailing data", `{"owner_id":"u1"} {"owner_id":"u2"}`),
	)
})
