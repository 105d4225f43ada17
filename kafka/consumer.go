package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kinder-payment-svc/config"
	"kinder-payment-svc/models"
	"kinder-payment-svc/retry"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Handler reacts to one decoded payment event.
type Handler func(ctx context.Context, event models.PaymentEvent) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads the payments topic as part of a consumer group. Offsets are
// committed only after the handler succeeds.
type Consumer struct {
	reader       messageReader
	logger       *zap.Logger
	maxRetries   int
	retryDelay   time.Duration
	fetchBackoff time.Duration
}

func NewConsumer(cfg config.KafkaConfig, logger *zap.Logger) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	logger.Info("Kafka consumer initialized",
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
	)
	return newConsumer(reader, logger)
}

func newConsumer(reader messageReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:       reader,
		logger:       logger,
		maxRetries:   2,
		retryDelay:   time.Second,
		fetchBackoff: time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		if err := c.handleMessageWithRetry(ctx, msg, handler); err != nil {
			c.logger.Error("Failed to handle message",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) handleMessageWithRetry(ctx context.Context, msg kafkago.Message, handler Handler) error {
	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.handleMessage(ctx, msg, handler)
	}, retry.Options{
		MaxRetries:   c.maxRetries,
		InitialDelay: c.retryDelay,
		OnRetry: func(err error, attempt int) {
			c.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	})
	return err
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafkago.Message, handler Handler) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, kafkaHeaderCarrier(msg.Headers))
	ctx, span := otel.Tracer("payment-service").Start(ctx, "ProcessPaymentEvent")
	defer span.End()

	var event models.PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("payment.id", event.PaymentID),
	)

	if err := handler(ctx, event); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

type kafkaHeaderCarrier []kafkago.Header

func (c kafkaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kafkaHeaderCarrier) Set(string, string) {}

func (c kafkaHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = h.Key
	}
	return keys
}
