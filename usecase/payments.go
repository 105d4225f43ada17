// Package usecase wraps gateway and store calls with loading and error state
// for the portal.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kinder-payment-svc/gateway"
	"kinder-payment-svc/kafka"
	"kinder-payment-svc/models"
	"kinder-payment-svc/store"

	"go.uber.org/zap"
)

var (
	ErrInvalidStatus      = errors.New("invalid payment status")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrReceiptUnavailable = errors.New("receipt not available")
)

// Result carries either Data or an Error message. Err keeps the original error
// for callers that need to classify it.
type Result[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

func (r Result[T]) OK() bool { return r.Err == nil }

// State tracks in-flight calls and the last error message. Loading stays true
// until every concurrent call has returned.
type State struct {
	mu       sync.Mutex
	inFlight int
	lastErr  string
}

func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

func (s *State) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *State) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	s.lastErr = ""
}

func (s *State) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if err != nil {
		s.lastErr = err.Error()
	}
}

type Gateway interface {
	ProcessPayment(ctx context.Context, req models.PaymentRequest) models.PaymentResponse
	ProcessRefund(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResponse, error)
	GenerateReceipt(ctx context.Context, ref string) *models.ReceiptData
}

type Store interface {
	GetPayment(ctx context.Context, id string) (models.PaymentRecord, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus, note string) (models.PaymentRecord, error)
}

type Payments struct {
	gateway Gateway
	store   Store
	events  kafka.EventPublisher
	state   *State
	logger  *zap.Logger
	now     func() time.Time
}

func NewPayments(gw Gateway, store Store, events kafka.EventPublisher, logger *zap.Logger) *Payments {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Payments{
		gateway: gw,
		store:   store,
		events:  events,
		state:   &State{},
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Payments) State() *State { return p.state }

func run[T any](ctx context.Context, p *Payments, op string, fn func(ctx context.Context) (T, error)) (res Result[T]) {
	p.state.begin()
	defer func() { p.state.end(res.Err) }()

	data, err := fn(ctx)
	if err != nil {
		p.logger.Warn("Payment operation failed", zap.String("operation", op), zap.Error(err))
		return Result[T]{Data: data, Error: err.Error(), Err: err}
	}
	return Result[T]{Data: data}
}

// ProcessPayment returns the gateway response as Data even when it failed, so
// field details stay available.
func (p *Payments) ProcessPayment(ctx context.Context, req models.PaymentRequest) Result[models.PaymentResponse] {
	return run(ctx, p, "process_payment", func(ctx context.Context) (models.PaymentResponse, error) {
		resp := p.gateway.ProcessPayment(ctx, req)
		if !resp.Success {
			return resp, errors.New(resp.Error)
		}
		return resp, nil
	})
}

func (p *Payments) ProcessRefund(ctx context.Context, req gateway.RefundRequest) Result[gateway.RefundResponse] {
	return run(ctx, p, "process_refund", func(ctx context.Context) (gateway.RefundResponse, error) {
		return p.gateway.ProcessRefund(ctx, req)
	})
}

func (p *Payments) GetReceipt(ctx context.Context, ref string) Result[*models.ReceiptData] {
	return run(ctx, p, "get_receipt", func(ctx context.Context) (*models.ReceiptData, error) {
		receipt := p.gateway.GenerateReceipt(ctx, ref)
		if receipt == nil {
			return nil, fmt.Errorf("%w: %s", ErrReceiptUnavailable, ref)
		}
		return receipt, nil
	})
}

func (p *Payments) GetParentPayments(ctx context.Context, parentID string) Result[[]models.PaymentRecord] {
	return run(ctx, p, "get_parent_payments", func(ctx context.Context) ([]models.PaymentRecord, error) {
		payments, err := p.store.ListPayments(ctx, models.PaymentFilter{ParentID: parentID})
		if err != nil {
			return nil, fmt.Errorf("failed to load payments: %w", err)
		}
		if payments == nil {
			payments = []models.PaymentRecord{}
		}
		return payments, nil
	})
}

// UpdatePaymentStatus applies an administrator status change. Moving to paid
// stamps PaidAt; note is appended to the record notes. Refunds are not a
// status change and go through ProcessRefund.
func (p *Payments) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, note string) Result[models.PaymentRecord] {
	return run(ctx, p, "update_payment_status", func(ctx context.Context) (models.PaymentRecord, error) {
		if !status.Valid() {
			return models.PaymentRecord{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		current, err := p.store.GetPayment(ctx, id)
		if err != nil {
			return models.PaymentRecord{}, err
		}
		if !current.Status.CanTransitionTo(status) {
			return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
		}

		updated, err := p.store.UpdatePaymentStatus(ctx, id, current.Status, status, note)
		if errors.Is(err, store.ErrStatusConflict) {
			return current, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		if err != nil {
			return current, err
		}

		event := models.PaymentEvent{
			EventType:     models.EventPaymentStatusChanged,
			PaymentID:     updated.ID,
			TransactionID: updated.TransactionID,
			ParentID:      updated.ParentID,
			Amount:        updated.Amount,
			Method:        updated.Method,
			Status:        updated.Status,
			Category:      updated.Category,
			OccurredAt:    p.now(),
		}
		if err := p.events.PublishPaymentEvent(ctx, event); err != nil {
			p.logger.Error("Failed to publish status change", zap.String("payment_id", id), zap.Error(err))
		}
		return updated, nil
	})
}
