package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"duochat/internal/models"
)

// EventType names a domain event written to Kafka.
type EventType string

const (
	MessageCreated EventType = "message.created"
	MessagesRead   EventType = "messages.read"
	SessionRevoked EventType = "session.revoked"
)

// Event is the JSON body of every record on the chat and session topics.
type Event struct {
	Type       EventType       `json:"type"`
	UserID     string          `json:"userId"` // actor; also the partition key
	OccurredAt time.Time       `json:"occurredAt"`
	Message    *models.Message `json:"message,omitempty"`
	MessageIDs []string        `json:"messageIds,omitempty"`
}

// EventPublisher writes domain events to one topic.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type topicPublisher struct {
	producer MessageProducer
	topic    string
}

// NewEventPublisher publishes events to topic through producer.
func NewEventPublisher(producer MessageProducer, topic string) EventPublisher {
	return &topicPublisher{producer: producer, topic: topic}
}

func (p *topicPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	return p.producer.SendMessage(ctx, p.topic, []byte(ev.UserID), payload)
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NewSessionRevokedHandler disconnects the user named by each session.revoked
// event. Other event types and undecodable records are skipped so that a bad
// record never blocks the partition.
func NewSessionRevokedHandler(disconnect func(userID string), log *slog.Logger) MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn("skipping undecodable session event", "error", err)
			return nil
		}
		if ev.Type != SessionRevoked || ev.UserID == "" {
			return nil
		}
		log.Info("session revoked, disconnecting user", "user_id", ev.UserID)
		disconnect(ev.UserID)
		return nil
	}
}
