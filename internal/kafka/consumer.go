package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader MessageReader
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, logger: log}
}

// Run feeds check-in events to handler until ctx is cancelled. Undecodable
// messages are committed and skipped.
func (c *Consumer) Run(ctx context.Context, handler func(models.CheckinEvent)) error {
	c.logger.LogKafka("CONSUMER_STARTED", "", "Attendance consumer running")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.LogKafka("FETCH_FAILED", "", err.Error())
			return err
		}

		var event models.CheckinEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.LogKafka("DECODE_FAILED", msg.Topic, fmt.Sprintf("offset=%d: %v", msg.Offset, err))
		} else {
			handler(event)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.LogKafka("COMMIT_FAILED", msg.Topic, err.Error())
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
