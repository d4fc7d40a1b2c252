// Package events publishes assessment lifecycle events through Watermill.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"assessment-engine/internal/domain"
)

// DefaultTopic receives assessment.completed events when no topic is configured.
const DefaultTopic = "assessment.completed"

// EventCompleted is the event_type metadata value of completion events.
const EventCompleted = "assessment.completed"

// Config selects the publisher backend. Without brokers events stay in process.
type Config struct {
	KafkaBrokers []string
	Topic        string
	Logger       *slog.Logger
}

// Publisher publishes completion events to a Watermill backend.
type Publisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	topic     string
}

// NewPublisher builds a Kafka-backed publisher when brokers are configured and an
// in-process gochannel one otherwise.
func NewPublisher(cfg Config) (*Publisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	wmLogger := watermill.NewSlogLogger(logger)

	if len(cfg.KafkaBrokers) == 0 {
		return NewPublisherWith(gochannel.NewGoChannel(gochannel.Config{}, wmLogger), topic, logger), nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewPublisherWith(pub, topic, logger), nil
}

// NewPublisherWith wraps an existing Watermill publisher.
func NewPublisherWith(pub message.Publisher, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{publisher: pub, logger: logger, topic: topic}
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string { return p.topic }

// PublishCompleted publishes event as JSON with event metadata headers.
func (p *Publisher) PublishCompleted(ctx context.Context, event domain.CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", EventCompleted)
	msg.Metadata.Set("session_id", event.SessionID)
	msg.Metadata.Set("survey_id", event.SurveyID)
	msg.Metadata.Set("timestamp", event.CompletedAt.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish completion event: %w", err)
	}
	p.logger.Debug("published completion event", "message_id", msg.UUID, "session_id", event.SessionID, "topic", p.topic)
	return nil
}

// Close releases the underlying publisher.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}
