package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-admission/internal/config"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	tickets "ms-admission/internal/tickets/service"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Logger *logger.Logger
}

// NewProducer writes to any topic; each message names its own.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish JSON-encodes v and writes it keyed by key, so every message about
// one ticket lands on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, v interface{}) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	}); err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, fmt.Sprintf("key=%s: %v", key, err))
		return err
	}

	p.Logger.LogKafka("PUBLISHED", topic, fmt.Sprintf("key=%s", key))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// TicketEvents publishes ticket state changes to their topics.
type TicketEvents struct {
	Producer *Producer
	Topics   config.TopicConfig
}

func NewTicketEvents(producer *Producer, topics config.TopicConfig) *TicketEvents {
	return &TicketEvents{Producer: producer, Topics: topics}
}

func (e *TicketEvents) PublishCheckin(ctx context.Context, event models.CheckinEvent) error {
	return e.Producer.Publish(ctx, e.Topics.TicketCheckedIn, event.TicketID, event)
}

func (e *TicketEvents) PublishLifecycle(ctx context.Context, event models.TicketLifecycleEvent) error {
	var topic string
	switch event.Type {
	case tickets.LifecycleIssued:
		topic = e.Topics.TicketIssued
	case tickets.LifecycleCancelled:
		topic = e.Topics.TicketCancelled
	default:
		return fmt.Errorf("no topic for lifecycle event %q", event.Type)
	}
	return e.Producer.Publish(ctx, topic, event.TicketID, event)
}
