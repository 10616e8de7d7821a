// Package memory defines the record model shared by both memory tiers.
//
// A Record is a single remembered utterance or tracked interaction. Records are
// partitioned per owner: every read path in tiermem is scoped to exactly one
// OwnerID and never returns another owner's records.
package memory

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinImportance is the lowest importance a record can carry.
	MinImportance = 1

	// MaxImportance is the highest importance a record can carry.
	MaxImportance = 10

	// ProvisionalImportance is assigned at write time, before the importance
	// scorer has responded.
	ProvisionalImportance = 5

	// CloneActor is the actor id of the owner's digital twin.
	CloneActor = "clone"

	// TimestampLayout is the layout used when rendering records as lines.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Well-known memory types. The set is open: any non-empty string is a valid
// type and new ones need no migration.
const (
	TypeChat         = "chat"
	TypeConversation = "conversation"
	TypeDebate       = "debate"
	TypeFeedPost     = "feed_post"
	TypeEvent        = "event"
	TypeEmotion      = "emotion"
)

// Record is the canonical shape of a single memory unit.
type Record struct {
	// ID is assigned by the long-term store. Recency entries leave it empty.
	ID string `json:"id,omitempty"`

	// OwnerID is the human user the memory belongs to.
	OwnerID string `json:"owner_id"`

	// ActorID is the persona (or CloneActor) that produced the utterance.
	ActorID string `json:"actor_id"`

	// Content is the raw or lightly summarized text.
	Content string `json:"content"`

	// Type is a coarse, open-ended filter tag (chat, debate, event, ...).
	Type string `json:"type"`

	// Timestamp is the creation instant.
	Timestamp time.Time `json:"timestamp"`

	// Importance is in [MinImportance, MaxImportance].
	Importance int `json:"importance"`

	// TopicTag optionally scopes recency windows when an owner runs several
	// independent conversations with the same actor.
	TopicTag string `json:"topic_tag,omitempty"`
}

// Scope identifies one set of recency windows.
type Scope struct {
	OwnerID  string
	ActorID  string
	TopicTag string
}

// Scope returns the recency scope the record belongs to.
func (r Record) Scope() Scope {
	return Scope{
		OwnerID:  r.OwnerID,
		ActorID:  r.ActorID,
		TopicTag: r.TopicTag,
	}
}

// Format renders the record as a single human-readable line suitable for
// injection into an LLM prompt:
//
//	[2024-11-02 14:03:11] [chat] (importance: 7) I finally adopted a cat
func (r Record) Format() string {
	return fmt.Sprintf("[%s] [%s] (importance: %d) %s",
		r.Timestamp.Format(TimestampLayout),
		r.Type,
		ClampImportance(r.Importance),
		strings.TrimSpace(r.Content),
	)
}

// ClampImportance forces n into [MinImportance, MaxImportance].
func ClampImportance(n int) int {
	switch {
	case n < MinImportance:
		return MinImportance
	case n > MaxImportance:
		return MaxImportance
	default:
		return n
	}
}

// FormatAll renders records in order.
func FormatAll(records []Record) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.Format())
	}
	return lines
}
