// Package kafka feeds change events published on a CDC topic to the dispatcher.
package kafka

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/dispatcher"

	"github.com/segmentio/kafka-go"
)

const sourceName = "kafka"

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher is implemented by *dispatcher.Dispatcher.
type Dispatcher interface {
	Handle(ctx context.Context, event models.ChangeEvent) dispatcher.Report
}

type Consumer struct {
	reader     MessageReader
	dispatcher Dispatcher
	logger     logger.Logger
}

// NewReader builds a consumer-group reader for the configured topic.
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
}

func NewConsumer(reader MessageReader, d Dispatcher, log logger.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		dispatcher: d,
		logger:     log.WithFields(map[string]interface{}{"source": sourceName}),
	}
}

// Run consumes until ctx is cancelled. Offsets are committed after dispatch,
// so a crash redelivers the in-flight message. Malformed messages are
// committed and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", map[string]interface{}{"error": err})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message", map[string]interface{}{
				"error":     err,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			})
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	event, err := validation.DecodeChangeEvent(msg.Value)
	if err != nil {
		metrics.SourceEventsReceived.WithLabelValues(sourceName, "malformed").Inc()
		c.logger.Warn("skipping malformed change event", map[string]interface{}{
			"error":     err,
			"partition": msg.Partition,
			"offset":    msg.Offset,
		})
		return
	}
	if event.EventID == "" {
		event.EventID = MessageID(msg)
	}

	metrics.SourceEventsReceived.WithLabelValues(sourceName, "accepted").Inc()
	c.dispatcher.Handle(ctx, event)
}

// MessageID identifies a message by its log position.
func MessageID(msg kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
