// Package kafka publishes memory events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/tiermem/pkg/eventstream"
)

const (
	// DefaultTopic receives events when no topic is configured.
	DefaultTopic = "tiermem.memory"

	defaultBatchTimeout = 50 * time.Millisecond
	defaultWriteTimeout = 5 * time.Second
)

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// BatchTimeout bounds how long messages wait for a batch to fill.
	BatchTimeout time.Duration

	WriteTimeout time.Duration
}

// Publisher writes events keyed by owner id, so one owner's events stay
// ordered within a partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// Ensure Publisher implements eventstream.Publisher.
var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka publisher. No connection is made until the
// first publish.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	batch := c.BatchTimeout
	if batch <= 0 {
		batch = defaultBatchTimeout
	}
	write := c.WriteTimeout
	if write <= 0 {
		write = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           batch,
			WriteTimeout:           write,
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: logger.With("component", "kafka_publisher"),
	}, nil
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.writer.Topic
}

// Message encodes event as a Kafka message.
func Message(event *eventstream.MemoryPromotedEvent) (kafkago.Message, error) {
	if event == nil {
		return kafkago.Message{}, eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encoding event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(event.Memory.OwnerID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}, nil
}

// PublishPromotion writes one promotion event.
func (p *Publisher) PublishPromotion(ctx context.Context, event *eventstream.MemoryPromotedEvent) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to kafka: %w", err)
	}

	p.logger.Debug("published event",
		"event_id", event.EventID,
		"owner_id", event.Memory.OwnerID,
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
