package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"duochat/internal/config"
)

//go:generate mockgen -destination=../mocks/mock_kafka.go -package=mocks duochat/internal/kafka MessageProducer

// MessageProducer defines the interface for a Kafka message producer.
type MessageProducer interface {
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// confluentKafkaProducer is an implementation of MessageProducer using confluent-kafka-go.
type confluentKafkaProducer struct {
	producer *kafka.Producer
	log      *slog.Logger
}

// NewConfluentKafkaProducer creates a new Kafka producer instance using confluent-kafka-go.
func NewConfluentKafkaProducer(cfg config.KafkaConfig, log *slog.Logger) (MessageProducer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
		"acks":              "all",
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &confluentKafkaProducer{producer: p, log: log.With("component", "kafka-producer")}, nil
}

// SendMessage sends a single message and waits for its delivery report.
func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	// Never closed: librdkafka may still report after ctx is done.
	deliveryChan := make(chan kafka.Event, 1)

	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("kafka producer failed to enqueue message for topic %s: %w", topic, err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("kafka producer: unexpected delivery event %T %v", e, e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka producer: delivery failed for topic %s: %w", topic, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka producer: waiting for delivery report on %s: %w", topic, ctx.Err())
	}
}

// Close flushes any outstanding messages and closes the Kafka producer.
func (p *confluentKafkaProducer) Close() {
	if p.producer == nil {
		return
	}
	if remaining := p.producer.Flush(15 * 1000); remaining > 0 {
		p.log.Warn("messages still outstanding after flush", "count", remaining)
	}
	p.producer.Close()
	p.producer = nil
	p.log.Info("kafka producer closed")
}
