// Package tiered is the entry point for client code: it writes utterances to
// the recency tier, scores them off the caller's path, promotes them to the
// weekly window and the long-term store, and merges both tiers on recall.
package tiered

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/tiermem/pkg/eventstream"
	"github.com/papercomputeco/tiermem/pkg/eventstream/nop"
	"github.com/papercomputeco/tiermem/pkg/importance"
	"github.com/papercomputeco/tiermem/pkg/longterm"
	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/metrics"
	"github.com/papercomputeco/tiermem/pkg/recency"
	"github.com/papercomputeco/tiermem/pkg/worker"
)

const (
	// DefaultPromotionThreshold is the minimum score written to long-term.
	DefaultPromotionThreshold = 5

	// DefaultRecallLimit bounds long-term results for Recall.
	DefaultRecallLimit = 5

	// DefaultToolLimit bounds long-term results for tool invocations.
	DefaultToolLimit = 3

	publishTimeout = 5 * time.Second
)

// Config configures a Memory.
type Config struct {
	Recency  *recency.Cache
	LongTerm *longterm.Store
	Scorer   importance.Scorer

	// Publisher receives promotion events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// WeeklyThreshold overrides the recency cache's weekly admission bar.
	WeeklyThreshold int

	// PromotionThreshold is the minimum score for a long-term write.
	// Defaults to DefaultPromotionThreshold.
	PromotionThreshold int

	// NumWorkers and QueueSize size the scoring pool.
	NumWorkers uint
	QueueSize  uint

	RecallLimit int
	ToolLimit   int

	// Now stamps new records. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Memory is the tiered memory facade. It is safe for concurrent use.
type Memory struct {
	recency   *recency.Cache
	longterm  *longterm.Store
	scorer    importance.Scorer
	publisher eventstream.Publisher
	pool      *worker.Pool

	promotionThreshold atomic.Int64
	recallLimit        int
	toolLimit          int
	now                func() time.Time
	logger             *slog.Logger
}

// New creates a Memory and starts its scoring workers.
func New(c Config) (*Memory, error) {
	if c.Recency == nil {
		return nil, errors.New("recency cache is required")
	}
	if c.LongTerm == nil {
		return nil, errors.New("long-term store is required")
	}
	if c.Scorer == nil {
		return nil, errors.New("importance scorer is required")
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Memory{
		recency:     c.Recency,
		longterm:    c.LongTerm,
		scorer:      c.Scorer,
		publisher:   c.Publisher,
		recallLimit: c.RecallLimit,
		toolLimit:   c.ToolLimit,
		now:         c.Now,
		logger:      logger.With("component", "tiered"),
	}
	if m.publisher == nil {
		m.publisher = nop.NewPublisher()
	}
	if m.recallLimit <= 0 {
		m.recallLimit = DefaultRecallLimit
	}
	if m.toolLimit <= 0 {
		m.toolLimit = DefaultToolLimit
	}
	if m.now == nil {
		m.now = time.Now
	}

	weekly := c.WeeklyThreshold
	if weekly <= 0 {
		weekly = c.Recency.WeeklyThreshold()
	}
	promotion := c.PromotionThreshold
	if promotion <= 0 {
		promotion = DefaultPromotionThreshold
	}
	m.SetThresholds(weekly, promotion)

	pool, err := worker.NewPool(worker.Config{
		Handler:    m.promote,
		NumWorkers: c.NumWorkers,
		QueueSize:  c.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	m.pool = pool

	return m, nil
}

// Thresholds returns the weekly admission and long-term promotion thresholds.
func (m *Memory) Thresholds() (weekly, promotion int) {
	return m.recency.WeeklyThreshold(), int(m.promotionThreshold.Load())
}

// SetThresholds changes both thresholds at runtime. Values are clamped to
// the importance range.
func (m *Memory) SetThresholds(weekly, promotion int) {
	m.recency.SetWeeklyThreshold(weekly)
	m.promotionThreshold.Store(int64(memory.ClampImportance(promotion)))
}

// Entry is one utterance to remember.
type Entry struct {
	OwnerID  string `json:"owner_id"`
	ActorID  string `json:"actor_id"`
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	TopicTag string `json:"topic_tag,omitempty"`
}

// Validate checks the fields every write needs.
func (e Entry) Validate() error {
	switch {
	case e.OwnerID == "":
		return memory.ErrOwnerRequired
	case e.ActorID == "":
		return memory.ErrActorRequired
	case strings.TrimSpace(e.Content) == "":
		return memory.ErrEmptyContent
	}
	return nil
}

// Remember writes e to the recent and today windows with a provisional
// importance and schedules scoring. Only validation errors are returned;
// backend failures and a full scoring queue are logged.
func (m *Memory) Remember(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	rec := memory.Record{
		OwnerID:    e.OwnerID,
		ActorID:    e.ActorID,
		Content:    strings.TrimSpace(e.Content),
		Type:       e.Type,
		Timestamp:  m.now(),
		Importance: memory.ProvisionalImportance,
		TopicTag:   e.TopicTag,
	}
	if rec.Type == "" {
		rec.Type = memory.TypeChat
	}

	m.recency.Append(ctx, rec, recency.Recent)
	m.recency.Append(ctx, rec, recency.Today)

	if !m.pool.Enqueue(worker.Job{Record: rec}) {
		m.logger.Warn("scoring skipped, memory not promoted",
			"owner_id", rec.OwnerID,
			"actor_id", rec.ActorID,
		)
	}
	return nil
}

// promote scores a remembered record and admits it to the tiers whose
// threshold it meets.
func (m *Memory) promote(ctx context.Context, job worker.Job) {
	rec := job.Record
	rec.Importance = m.scorer.Score(ctx, rec.Content)
	weekly, promotion := m.Thresholds()

	var (
		tiers []string
		id    string
	)
	if rec.Importance >= weekly {
		m.recency.Append(ctx, rec, recency.Weekly)
		metrics.RecordPromotion(eventstream.TierWeekly)
		tiers = append(tiers, eventstream.TierWeekly)
	}
	if rec.Importance >= promotion {
		var err error
		id, err = m.longterm.Store(ctx, rec)
		if err == nil {
			metrics.RecordPromotion(eventstream.TierLongTerm)
			tiers = append(tiers, eventstream.TierLongTerm)
		}
	}

	m.logger.Debug("memory scored",
		"owner_id", rec.OwnerID,
		"actor_id", rec.ActorID,
		"score", rec.Importance,
		"tiers", tiers,
	)
	if len(tiers) == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	event := eventstream.NewMemoryPromoted(rec, id, tiers, m.now())
	if err := m.publisher.PublishPromotion(pctx, event); err != nil {
		m.logger.Warn("publishing promotion event failed",
			"owner_id", rec.OwnerID,
			"error", err,
		)
	}
}

// RecallRequest is the structured recall query, also accepted as the JSON
// input of the recall tool.
type RecallRequest struct {
	OwnerID  string `json:"owner_id"`
	Query    string `json:"query"`
	ActorID  string `json:"actor_id,omitempty"`
	Type     string `json:"type,omitempty"`
	TopicTag string `json:"topic_tag,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Recollection holds both tiers' results for one recall.
type Recollection struct {
	// Recent is the merged recency context, oldest first. Empty when no
	// actor was given.
	Recent []memory.Record `json:"recent"`

	// LongTerm is ordered by similarity to the query.
	LongTerm []memory.Record `json:"long_term"`
}

// Lines renders the recollection with recency lines first.
func (r Recollection) Lines() []string {
	return append(memory.FormatAll(r.Recent), memory.FormatAll(r.LongTerm)...)
}

// RecallRecords queries both tiers. Tier failures degrade to empty results;
// the only error is a missing owner id.
func (m *Memory) RecallRecords(ctx context.Context, req RecallRequest) (Recollection, error) {
	if req.OwnerID == "" {
		return Recollection{}, memory.ErrOwnerRequired
	}

	out := Recollection{Recent: []memory.Record{}}
	if req.ActorID != "" {
		scope := memory.Scope{OwnerID: req.OwnerID, ActorID: req.ActorID, TopicTag: req.TopicTag}
		for _, rec := range m.recency.MergedRecords(ctx, scope) {
			if req.Type != "" && rec.Type != req.Type {
				continue
			}
			out.Recent = append(out.Recent, rec)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = m.recallLimit
	}
	out.LongTerm = m.longterm.Query(ctx, memory.Query{
		OwnerID: req.OwnerID,
		Text:    req.Query,
		Type:    req.Type,
		ActorID: req.ActorID,
		Limit:   limit,
	})

	return out, nil
}

// Recall returns recency lines followed by long-term lines.
func (m *Memory) Recall(ctx context.Context, req RecallRequest) ([]string, error) {
	r, err := m.RecallRecords(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Lines(), nil
}

// ShortTermRequest selects one recency window.
type ShortTermRequest struct {
	OwnerID  string `json:"owner_id"`
	ActorID  string `json:"actor_id"`
	TopicTag string `json:"topic_tag,omitempty"`

	// Window is recent, today or weekly. Empty means recent.
	Window string `json:"window,omitempty"`
}

// ShortTerm returns one window's records, newest first.
func (m *Memory) ShortTerm(ctx context.Context, req ShortTermRequest) ([]memory.Record, error) {
	if req.OwnerID == "" {
		return nil, memory.ErrOwnerRequired
	}
	if req.ActorID == "" {
		return nil, memory.ErrActorRequired
	}
	w, err := recency.ParseWindow(req.Window)
	if err != nil {
		return nil, err
	}

	scope := memory.Scope{OwnerID: req.OwnerID, ActorID: req.ActorID, TopicTag: req.TopicTag}
	return m.recency.Records(ctx, scope, w), nil
}

// Flush blocks until every scoring job accepted so far has finished.
func (m *Memory) Flush() {
	m.pool.Flush()
}

// Close drains pending scoring jobs, then closes every backend.
func (m *Memory) Close() error {
	m.pool.Close()
	return errors.Join(
		m.recency.Close(),
		m.longterm.Close(),
		m.publisher.Close(),
	)
}
