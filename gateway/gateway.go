// Package gateway simulates settlement for the supported payment methods and
// persists successful outcomes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kinder-payment-svc/config"
	"kinder-payment-svc/kafka"
	"kinder-payment-svc/middleware"
	"kinder-payment-svc/models"
	"kinder-payment-svc/notification"
	"kinder-payment-svc/retry"
	"kinder-payment-svc/store"
	"kinder-payment-svc/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// retryable accepts transient transport failures, in-flight conflicts and
// processor codes that ask the caller to try again.
var retryable = retry.Any(
	retry.IsTransient,
	retry.OnStatuses(http.StatusConflict),
	retry.OnCodes(CodeProcessorBusy, CodeRateLimited),
)

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.PaymentRecord) error
	FindPayment(ctx context.Context, ref string) (models.PaymentRecord, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus, note string) (models.PaymentRecord, error)
}

type Directory interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	GetChild(ctx context.Context, id string) (models.Child, error)
}

type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, p models.PaymentRecord)
	SendPaymentFailure(ctx context.Context, parentID string, amount float64, currency, reason string)
	SendRefundNotification(ctx context.Context, p models.PaymentRecord, refundAmount float64)
	SendAdminPaymentNotification(ctx context.Context, notice notification.AdminNotice)
}

type Deps struct {
	Store     PaymentStore
	Directory Directory
	Notifier  Notifier
	Events    kafka.EventPublisher
	Logger    *zap.Logger
}

type Gateway struct {
	cfg       config.GatewayConfig
	store     PaymentStore
	directory Directory
	notifier  Notifier
	events    kafka.EventPublisher
	logger    *zap.Logger
	handlers  map[models.PaymentMethod]methodHandler
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(cfg config.GatewayConfig, deps Deps) *Gateway {
	events := deps.Events
	if events == nil {
		events = kafka.NopPublisher{}
	}
	g := &Gateway{
		cfg:       cfg,
		store:     deps.Store,
		directory: deps.Directory,
		notifier:  deps.Notifier,
		events:    events,
		logger:    deps.Logger,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	g.handlers = g.defaultHandlers()
	return g
}

// ProcessPayment runs one payment attempt under the retry and timeout policy.
// Every error is converted into a failed PaymentResponse.
func (g *Gateway) ProcessPayment(ctx context.Context, req models.PaymentRequest) models.PaymentResponse {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "ProcessPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(req.Method)),
		attribute.String("payment.parent_id", req.ParentID),
		attribute.Float64("payment.amount", req.Amount),
	)

	if last4 := accountLastFour(req); last4 != "" {
		span.SetAttributes(attribute.String("payment.account_last4", last4))
	}

	if req.Amount <= 0 {
		middleware.RecordPaymentProcessed(string(req.Method), string(models.PaymentStatusFailed))
		g.logger.Warn("Payment rejected",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Float64("amount", req.Amount),
		)
		return failedResponse(ErrInvalidAmount)
	}

	record, err := retry.Do(ctx, func(ctx context.Context) (models.PaymentRecord, error) {
		return retry.WithTimeout(ctx, g.cfg.Timeout, func(ctx context.Context) (models.PaymentRecord, error) {
			return g.attempt(ctx, req)
		})
	}, retry.Options{
		MaxRetries:   g.cfg.MaxRetries,
		InitialDelay: g.cfg.InitialDelay,
		Retryable:    retryable,
		OnRetry: func(err error, attempt int) {
			middleware.RecordPaymentRetry(string(req.Method))
			g.logger.Warn("Retrying payment",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	})
	if err != nil {
		span.RecordError(err)
		return g.handleFailure(ctx, req, err)
	}

	span.SetAttributes(attribute.String("payment.transaction_id", record.TransactionID))
	return g.handleSuccess(ctx, record)
}

func (g *Gateway) attempt(ctx context.Context, req models.PaymentRequest) (models.PaymentRecord, error) {
	handler, ok := g.handlers[req.Method]
	if !ok {
		return models.PaymentRecord{}, &ValidationError{Field: "payment_method", Message: ErrUnsupportedMethod.Error()}
	}
	if req.ParentID == "" {
		return models.PaymentRecord{}, missing("parent_id")
	}

	result, err := handler(ctx, req)
	if err != nil {
		return models.PaymentRecord{}, err
	}

	currency := req.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	record := models.PaymentRecord{
		TransactionID: result.TransactionID,
		ParentID:      req.ParentID,
		ChildID:       req.ChildID,
		Amount:        req.Amount,
		Currency:      currency,
		Method:        req.Method,
		Status:        result.Status,
		Description:   req.Description,
		Category:      req.Category(),
		DueDate:       parseDueDate(req.Metadata[models.MetadataDueDate]),
	}
	if result.Status == models.PaymentStatusPaid {
		record.ReceiptURL = g.receiptURL(result.TransactionID)
	}

	if err := g.store.CreatePayment(ctx, &record); err != nil {
		return models.PaymentRecord{}, fmt.Errorf("failed to persist payment: %w", err)
	}
	return record, nil
}

func (g *Gateway) handleSuccess(ctx context.Context, record models.PaymentRecord) models.PaymentResponse {
	middleware.RecordPaymentProcessed(string(record.Method), string(record.Status))
	g.logger.Info("Payment processed",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("payment_id", record.ID),
		zap.String("transaction_id", record.TransactionID),
		zap.String("status", string(record.Status)),
	)

	g.publish(ctx, eventFor(models.EventPaymentSuccess, record, g.now()))
	g.notifier.SendPaymentConfirmation(ctx, record)

	parentName, childName := g.payerNames(ctx, record.ParentID, record.ChildID)
	g.notifier.SendAdminPaymentNotification(ctx, notification.AdminNotice{
		ParentName:  parentName,
		ChildName:   childName,
		Amount:      record.Amount,
		Currency:    record.Currency,
		Status:      record.Status,
		Description: record.Description,
	})

	return models.PaymentResponse{
		Success:       true,
		TransactionID: record.TransactionID,
		ReceiptURL:    record.ReceiptURL,
		Status:        record.Status,
	}
}

func (g *Gateway) handleFailure(ctx context.Context, req models.PaymentRequest, err error) models.PaymentResponse {
	middleware.RecordPaymentProcessed(string(req.Method), string(models.PaymentStatusFailed))
	g.logger.Error("Payment failed",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("parent_id", req.ParentID),
		zap.String("method", string(req.Method)),
		zap.String("account_last4", accountLastFour(req)),
		zap.Error(err),
	)

	resp := failedResponse(err)
	currency := req.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	g.publish(ctx, models.PaymentEvent{
		EventType:  models.EventPaymentFailed,
		ParentID:   req.ParentID,
		Amount:     req.Amount,
		Method:     req.Method,
		Status:     models.PaymentStatusFailed,
		Category:   req.Category(),
		Error:      resp.Error,
		OccurredAt: g.now(),
	})
	if req.ParentID == "" {
		return resp
	}
	g.notifier.SendPaymentFailure(ctx, req.ParentID, req.Amount, currency, resp.Error)

	parentName, childName := g.payerNames(ctx, req.ParentID, req.ChildID)
	g.notifier.SendAdminPaymentNotification(ctx, notification.AdminNotice{
		ParentName:  parentName,
		ChildName:   childName,
		Amount:      req.Amount,
		Currency:    currency,
		Status:      models.PaymentStatusFailed,
		Description: req.Description,
	})
	return resp
}

func failedResponse(err error) models.PaymentResponse {
	resp := models.PaymentResponse{
		Success: false,
		Status:  models.PaymentStatusFailed,
		Error:   errorMessage(err),
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Details = map[string]string{verr.Field: verr.Message}
	}
	return resp
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, retry.ErrTimeout):
		return "payment processing timed out"
	case errors.Is(err, context.Canceled):
		return "payment was cancelled"
	}
	return err.Error()
}

// payerNames resolves display names for admin notices. Lookup failures fall back
// to the raw ids.
func (g *Gateway) payerNames(ctx context.Context, parentID, childID string) (string, string) {
	parentName := parentID
	if u, err := g.directory.GetUser(ctx, parentID); err == nil {
		parentName = u.FullName()
	} else {
		g.logger.Warn("Failed to resolve parent name", zap.String("parent_id", parentID), zap.Error(err))
	}

	childName := ""
	if childID != "" {
		childName = childID
		if c, err := g.directory.GetChild(ctx, childID); err == nil {
			childName = c.FullName()
		}
	}
	return parentName, childName
}

// RefundRequest refunds a paid record. A zero Amount refunds the full payment.
type RefundRequest struct {
	TransactionID string  `json:"transaction_id" binding:"required"`
	Amount        float64 `json:"amount,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

type RefundResponse struct {
	Success       bool                 `json:"success"`
	RefundID      string               `json:"refund_id,omitempty"`
	TransactionID string               `json:"transaction_id"`
	Amount        float64              `json:"amount,omitempty"`
	Status        models.PaymentStatus `json:"status,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// ProcessRefund flips a paid record to refunded. The record amount is kept and the
// reason is appended to its notes. Records are looked up by transaction id, then
// by record id.
func (g *Gateway) ProcessRefund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "ProcessRefund")
	defer span.End()
	span.SetAttributes(attribute.String("payment.transaction_id", req.TransactionID))

	resp := RefundResponse{TransactionID: req.TransactionID}
	fail := func(err error) (RefundResponse, error) {
		span.RecordError(err)
		g.logger.Warn("Refund rejected",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("transaction_id", req.TransactionID),
			zap.Error(err),
		)
		resp.Error = err.Error()
		return resp, err
	}

	record, err := g.store.FindPayment(ctx, req.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(fmt.Errorf("%w: %s", ErrPaymentNotFound, req.TransactionID))
	}
	if err != nil {
		return fail(fmt.Errorf("failed to load payment: %w", err))
	}
	if record.Status != models.PaymentStatusPaid {
		return fail(fmt.Errorf("%w: payment is %s", ErrRefundNotAllowed, record.Status))
	}

	amount := req.Amount
	switch {
	case amount < 0:
		return fail(&ValidationError{Field: "amount", Message: "must not be negative"})
	case amount == 0:
		amount = record.Amount
	case amount > record.Amount:
		return fail(ErrRefundExceedsAmount)
	}

	if err := g.simulateProcessing(ctx); err != nil {
		return fail(err)
	}

	note := fmt.Sprintf("Refunded %.2f %s", amount, record.Currency)
	if req.Reason != "" {
		note += ": " + req.Reason
	}
	updated, err := g.store.UpdatePaymentStatus(ctx, record.ID, models.PaymentStatusPaid, models.PaymentStatusRefunded, note)
	if errors.Is(err, store.ErrStatusConflict) {
		return fail(fmt.Errorf("%w: payment is no longer paid", ErrRefundNotAllowed))
	}
	if err != nil {
		return fail(fmt.Errorf("failed to update payment: %w", err))
	}

	event := eventFor(models.EventPaymentRefunded, updated, g.now())
	event.Amount = amount
	g.publish(ctx, event)
	g.notifier.SendRefundNotification(ctx, updated, amount)

	g.logger.Info("Payment refunded",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("payment_id", updated.ID),
		zap.Float64("amount", amount),
	)

	resp.Success = true
	resp.RefundID = g.newTransactionID("rf")
	resp.Amount = amount
	resp.Status = updated.Status
	return resp, nil
}

type StatusResult struct {
	Status *models.PaymentStatus `json:"status"`
	Error  string                `json:"error,omitempty"`
}

// GetPaymentStatus never fails: an unknown reference yields a nil Status and an
// error message.
func (g *Gateway) GetPaymentStatus(ctx context.Context, ref string) StatusResult {
	record, err := g.store.FindPayment(ctx, ref)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.logger.Error("Failed to load payment status", zap.String("reference", ref), zap.Error(err))
		}
		return StatusResult{Error: fmt.Sprintf("payment %s not found", ref)}
	}
	status := record.Status
	return StatusResult{Status: &status}
}

// GenerateReceipt joins a record with its payer. It returns nil on any failure.
func (g *Gateway) GenerateReceipt(ctx context.Context, ref string) *models.ReceiptData {
	record, err := g.store.FindPayment(ctx, ref)
	if err != nil {
		g.logger.Warn("Receipt requested for unknown payment", zap.String("reference", ref), zap.Error(err))
		return nil
	}
	parent, err := g.directory.GetUser(ctx, record.ParentID)
	if err != nil {
		g.logger.Error("Failed to load payer for receipt",
			zap.String("payment_id", record.ID),
			zap.String("parent_id", record.ParentID),
			zap.Error(err),
		)
		return nil
	}

	receipt := &models.ReceiptData{
		ReceiptNumber: "RCT-" + strings.ToUpper(record.Reference()),
		PaymentID:     record.ID,
		TransactionID: record.TransactionID,
		ParentName:    parent.FullName(),
		ParentEmail:   parent.Email,
		Amount:        record.Amount,
		Currency:      record.Currency,
		Method:        record.Method,
		Status:        record.Status,
		Description:   record.Description,
		Category:      record.Category,
		PaidAt:        record.PaidAt,
		IssuedAt:      g.now(),
	}
	if record.ChildID != "" {
		if child, err := g.directory.GetChild(ctx, record.ChildID); err == nil {
			receipt.ChildName = child.FullName()
		}
	}
	return receipt
}

func (g *Gateway) publish(ctx context.Context, event models.PaymentEvent) {
	if err := g.events.PublishPaymentEvent(ctx, event); err != nil {
		g.logger.Error("Failed to publish payment event",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func (g *Gateway) receiptURL(transactionID string) string {
	return strings.TrimRight(g.cfg.ReceiptBaseURL, "/") + "/" + transactionID
}

func eventFor(eventType string, p models.PaymentRecord, at time.Time) models.PaymentEvent {
	return models.PaymentEvent{
		EventType:     eventType,
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		ParentID:      p.ParentID,
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        p.Status,
		Category:      p.Category,
		OccurredAt:    at,
	}
}

func parseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// accountLastFour masks the card or bank account number down to its last four digits.
func accountLastFour(req models.PaymentRequest) string {
	switch {
	case req.Method == models.PaymentMethodCreditCard && req.CardNumber != "":
		return validation.LastFour(req.CardNumber)
	case req.Method == models.PaymentMethodBankTransfer && req.BankAccount != "":
		return validation.LastFour(req.BankAccount)
	}
	return ""
}
