package eventstream

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/papercomputeco/tiermem/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryPromoted is emitted after a scored memory is admitted to
	// the weekly window or the long-term store.
	EventTypeMemoryPromoted = "memory.promoted"
)

// Tiers a memory can be promoted into.
const (
	TierWeekly   = "weekly"
	TierLongTerm = "long_term"
)

// MemoryPromotedEvent is a transport-neutral event payload for a promotion.
type MemoryPromotedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Memory        PromotedMemory `json:"memory"`

	// Tiers lists where the memory was admitted.
	Tiers []string `json:"tiers"`
}

// PromotedMemory describes the promoted record without its content.
type PromotedMemory struct {
	// LongTermID is set when the record reached the long-term store.
	LongTermID string    `json:"long_term_id,omitempty"`
	OwnerID    string    `json:"owner_id"`
	ActorID    string    `json:"actor_id"`
	Type       string    `json:"type"`
	TopicTag   string    `json:"topic_tag,omitempty"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMemoryPromoted builds an event for rec.
func NewMemoryPromoted(rec memory.Record, longTermID string, tiers []string, now time.Time) *MemoryPromotedEvent {
	return &MemoryPromotedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryPromoted,
		EventID:       "evt_" + ulid.Make().String(),
		EmittedAt:     now.UTC(),
		Memory: PromotedMemory{
			LongTermID: longTermID,
			OwnerID:    rec.OwnerID,
			ActorID:    rec.ActorID,
			Type:       rec.Type,
			TopicTag:   rec.TopicTag,
			Importance: rec.Importance,
			CreatedAt:  rec.Timestamp.UTC(),
		},
		Tiers: tiers,
	}
}
