package nop

import (
	"context"

	"github.com/papercomputeco/tiermem/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// Ensure Publisher implements eventstream.Publisher.
var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishPromotion validates input and otherwise does nothing.
func (p *Publisher) PublishPromotion(_ context.Context, event *eventstream.MemoryPromotedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
