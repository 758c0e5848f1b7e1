package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"duochat/internal/config"
)

// MessageHandler processes one consumed Kafka message. Offsets are only
// committed when it returns nil.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, topics []string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	log      *slog.Logger
}

// NewConfluentKafkaConsumer creates a consumer in cfg.ConsumerGroup. The
// underlying client is created when Consume starts.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig, log *slog.Logger) MessageConsumer {
	return &confluentKafkaConsumer{
		cfg: cfg,
		log: log.With("component", "kafka-consumer", "group", cfg.ConsumerGroup),
	}
}

// Consume blocks until ctx is canceled or a fatal error occurs.
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka consumer: no topics specified")
	}

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           c.cfg.ConsumerGroup,
		"auto.offset.reset":  "latest", // revocations older than this process are moot
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer for group %s: %w", c.cfg.ConsumerGroup, err)
	}
	c.consumer = consumer

	if err = c.consumer.SubscribeTopics(topics, nil); err != nil {
		_ = c.consumer.Close()
		c.consumer = nil
		return fmt.Errorf("failed to subscribe to topics %v: %w", topics, err)
	}
	c.log.Info("kafka consumer started", "topics", topics)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("kafka consumer loop finished")
			return nil
		default:
		}

		ev := c.consumer.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := handler(ctx, e); err != nil {
				c.log.Error("error processing kafka message",
					"topic", *e.TopicPartition.Topic, "offset", e.TopicPartition.Offset, "error", err)
				continue
			}
			if _, err := c.consumer.CommitMessage(e); err != nil {
				c.log.Warn("failed to commit offset",
					"topic", *e.TopicPartition.Topic, "offset", e.TopicPartition.Offset, "error", err)
			}
		case kafka.Error:
			c.log.Error("kafka consumer error", "error", e, "code", e.Code(), "fatal", e.IsFatal())
			if e.IsFatal() {
				return e
			}
		case kafka.AssignedPartitions:
			c.log.Info("partitions assigned", "partitions", e.Partitions)
			_ = c.consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			c.log.Info("partitions revoked", "partitions", e.Partitions)
			_ = c.consumer.Unassign()
		}
	}
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		c.log.Error("error closing kafka consumer", "error", err)
	}
	c.consumer = nil
}
