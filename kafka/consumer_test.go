package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"kinder-payment-svc/models"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.messages) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func eventMessage(t *testing.T, offset int64, event models.PaymentEvent) kafkago.Message {
	t.Helper()
	value, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return kafkago.Message{Offset: offset, Value: value}
}

func TestConsumer_CommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		messages: []kafkago.Message{
			eventMessage(t, 1, models.PaymentEvent{EventType: models.EventPaymentSuccess, PaymentID: "p-1"}),
			eventMessage(t, 2, models.PaymentEvent{EventType: models.EventPaymentRefunded, PaymentID: "p-2"}),
		},
		cancel: cancel,
	}
	consumer := newConsumer(reader, zaptest.NewLogger(t))
	consumer.retryDelay = time.Millisecond

	var seen []string
	consumer.Start(ctx, func(_ context.Context, event models.PaymentEvent) error {
		seen = append(seen, event.EventType)
		return nil
	})

	if len(seen) != 2 {
		t.Fatalf("Expected 2 handled events, got %d", len(seen))
	}
	if len(reader.committed) != 2 {
		t.Errorf("Expected 2 commits, got %d", len(reader.committed))
	}
}

func TestConsumer_RetriesThenSkipsCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		messages: []kafkago.Message{
			eventMessage(t, 7, models.PaymentEvent{EventType: models.EventPaymentFailed}),
		},
		cancel: cancel,
	}
	consumer := newConsumer(reader, zaptest.NewLogger(t))
	consumer.retryDelay = time.Millisecond

	calls := 0
	consumer.Start(ctx, func(context.Context, models.PaymentEvent) error {
		calls++
		return errors.New("redis down")
	})

	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if len(reader.committed) != 0 {
		t.Errorf("Expected no commits, got %v", reader.committed)
	}
}

func TestConsumer_InvalidPayloadNotCommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		messages: []kafkago.Message{{Offset: 3, Value: []byte("not json")}},
		cancel:   cancel,
	}
	consumer := newConsumer(reader, zaptest.NewLogger(t))
	consumer.retryDelay = time.Millisecond

	consumer.Start(ctx, func(context.Context, models.PaymentEvent) error { return nil })

	if len(reader.committed) != 0 {
		t.Errorf("Expected no commits, got %v", reader.committed)
	}
}
