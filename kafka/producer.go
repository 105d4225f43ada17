package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"kinder-payment-svc/config"
	"kinder-payment-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EventPublisher emits payment analytics events.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

func InitProducer(cfg config.KafkaConfig, logger *zap.Logger) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Brokers))
	return producer, nil
}

// Publisher writes PaymentEvents to a topic keyed by parent id, so one payer's
// events stay ordered within a partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

func (p *Publisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ParentID),
		Value: sarama.ByteEncoder(eventJSON),
	}

	// Inject trace context into Kafka message headers
	carrier := make(saramaHeaderCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = []sarama.RecordHeader(carrier)

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	traceID := ""
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}

	p.logger.Info("Payment event published",
		zap.String("trace_id", traceID),
		zap.String("topic", p.topic),
		zap.String("event_type", event.EventType),
		zap.String("payment_id", event.PaymentID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. Used when EVENTS_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) PublishPaymentEvent(context.Context, models.PaymentEvent) error { return nil }

type saramaHeaderCarrier []sarama.RecordHeader

func (c saramaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *saramaHeaderCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (c saramaHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
