// Package admin implements the administrator payment views and actions.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kinder-payment-svc/gateway"
	"kinder-payment-svc/models"
	"kinder-payment-svc/store"
	"kinder-payment-svc/usecase"
	"kinder-payment-svc/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownAction       = errors.New("unknown bulk action")
	ErrNoItems             = errors.New("no payments selected")
	ErrReminderUnavailable = errors.New("reminders are only sent for pending or overdue payments")
)

// FormError carries the violations of a rejected NewPaymentForm.
type FormError struct {
	Violations validation.Violations
}

func (e *FormError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, reason := range e.Violations {
		fields = append(fields, f+": "+reason)
	}
	return "invalid payment form: " + strings.Join(fields, ", ")
}

type Store interface {
	CreatePayment(ctx context.Context, p *models.PaymentRecord) error
	GetPayment(ctx context.Context, id string) (models.PaymentRecord, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetChild(ctx context.Context, id string) (models.Child, error)
}

type Payments interface {
	ProcessRefund(ctx context.Context, req gateway.RefundRequest) usecase.Result[gateway.RefundResponse]
	GetReceipt(ctx context.Context, ref string) usecase.Result[*models.ReceiptData]
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, note string) usecase.Result[models.PaymentRecord]
}

type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, p models.PaymentRecord)
	SendPaymentReminder(ctx context.Context, p models.PaymentRecord)
	SendPaymentOverdueNotification(ctx context.Context, p models.PaymentRecord)
}

type Analytics interface {
	Dashboard(ctx context.Context) models.Dashboard
	Report(ctx context.Context, name string) (any, bool, error)
	Invalidate(ctx context.Context) error
}

type Service struct {
	store           Store
	payments        Payments
	notifier        Notifier
	analytics       Analytics
	logger          *zap.Logger
	bulkConcurrency int
	now             func() time.Time
}

func NewService(s Store, payments Payments, notifier Notifier, analytics Analytics, bulkConcurrency int, logger *zap.Logger) *Service {
	if bulkConcurrency <= 0 {
		bulkConcurrency = 4
	}
	return &Service{
		store:           s,
		payments:        payments,
		notifier:        notifier,
		analytics:       analytics,
		logger:          logger,
		bulkConcurrency: bulkConcurrency,
		now:             time.Now,
	}
}

// ListPayments loads every record and applies q in memory.
func (s *Service) ListPayments(ctx context.Context, q ListQuery) (Page, error) {
	records, err := s.store.ListPayments(ctx, models.PaymentFilter{})
	if err != nil {
		return Page{}, fmt.Errorf("failed to load payments: %w", err)
	}

	names := newNameResolver(s.store)
	rows := make([]PaymentRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, names.row(ctx, r))
	}
	return q.apply(rows), nil
}

func (s *Service) View(ctx context.Context, id string) (PaymentRow, error) {
	record, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return PaymentRow{}, err
	}
	return newNameResolver(s.store).row(ctx, record), nil
}

// Remind sends a reminder for a pending record or an overdue notice for an
// overdue one.
func (s *Service) Remind(ctx context.Context, id string) (models.PaymentRecord, error) {
	record, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return models.PaymentRecord{}, err
	}

	switch record.Status {
	case models.PaymentStatusPending:
		s.notifier.SendPaymentReminder(ctx, record)
	case models.PaymentStatusOverdue:
		s.notifier.SendPaymentOverdueNotification(ctx, record)
	default:
		return record, fmt.Errorf("%w: status is %s", ErrReminderUnavailable, record.Status)
	}

	s.logger.Info("Payment reminder sent",
		zap.String("payment_id", record.ID),
		zap.String("parent_id", record.ParentID),
		zap.String("status", string(record.Status)),
	)
	return record, nil
}

// Refund refunds a record by id. amount 0 refunds the full amount.
func (s *Service) Refund(ctx context.Context, id string, amount float64, reason string) (gateway.RefundResponse, error) {
	record, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return gateway.RefundResponse{}, err
	}

	res := s.payments.ProcessRefund(ctx, gateway.RefundRequest{
		TransactionID: record.Reference(),
		Amount:        amount,
		Reason:        reason,
	})
	return res.Data, res.Err
}

// MarkPaid records an offline payment and confirms it to the payer.
func (s *Service) MarkPaid(ctx context.Context, id string) (models.PaymentRecord, error) {
	res := s.payments.UpdatePaymentStatus(ctx, id, models.PaymentStatusPaid,
		"Marked as paid on "+s.now().Format("2006-01-02"))
	if !res.OK() {
		return res.Data, res.Err
	}
	s.notifier.SendPaymentConfirmation(ctx, res.Data)
	return res.Data, nil
}

func (s *Service) markPending(ctx context.Context, id string) (models.PaymentRecord, error) {
	res := s.payments.UpdatePaymentStatus(ctx, id, models.PaymentStatusPending,
		"Reset to pending on "+s.now().Format("2006-01-02"))
	return res.Data, res.Err
}

func (s *Service) Receipt(ctx context.Context, id string) (*models.ReceiptData, error) {
	record, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.payments.GetReceipt(ctx, record.Reference())
	return res.Data, res.Err
}

// Bulk actions.
const (
	BulkMarkPaid     = "mark_paid"
	BulkMarkPending  = "mark_pending"
	BulkSendReminder = "send_reminder"
)

type BulkRequest struct {
	Action string   `json:"action" binding:"required"`
	IDs    []string `json:"ids" binding:"required"`
}

type BulkItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type BulkReport struct {
	Action    string           `json:"action"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkItemResult `json:"items"`
}

// Bulk applies one action to every id. Items run concurrently and one
// failure does not stop the others; the report lists each outcome in request
// order.
func (s *Service) Bulk(ctx context.Context, req BulkRequest) (BulkReport, error) {
	var action func(ctx context.Context, id string) error
	switch req.Action {
	case BulkMarkPaid:
		action = func(ctx context.Context, id string) error {
			_, err := s.MarkPaid(ctx, id)
			return err
		}
	case BulkMarkPending:
		action = func(ctx context.Context, id string) error {
			_, err := s.markPending(ctx, id)
			return err
		}
	case BulkSendReminder:
		action = func(ctx context.Context, id string) error {
			_, err := s.Remind(ctx, id)
			return err
		}
	default:
		return BulkReport{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if len(req.IDs) == 0 {
		return BulkReport{}, ErrNoItems
	}

	items := make([]BulkItemResult, len(req.IDs))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range req.IDs {
		g.Go(func() error {
			items[i] = BulkItemResult{ID: id, Success: true}
			if err := action(ctx, id); err != nil {
				items[i] = BulkItemResult{ID: id, Error: err.Error()}
			}
			return nil
		})
	}
	_ = g.Wait()

	report := BulkReport{Action: req.Action, Total: len(items), Items: items}
	for _, item := range items {
		if item.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	s.logger.Info("Bulk action completed",
		zap.String("action", req.Action),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Payment types accepted by the add-payment form.
var paymentTypes = []string{"monthly", "one_time", "annual"}

var formStatuses = []string{
	string(models.PaymentStatusPending),
	string(models.PaymentStatusPaid),
	string(models.PaymentStatusOverdue),
}

var formMethods = []string{
	string(models.PaymentMethodCreditCard),
	string(models.PaymentMethodBankTransfer),
	string(models.PaymentMethodPayPal),
	string(models.PaymentMethodCash),
}

// NewPaymentForm is a manually entered payment row.
type NewPaymentForm struct {
	ParentID    string               `json:"parent_id"`
	ChildID     string               `json:"child_id"`
	Type        string               `json:"type"`
	Category    string               `json:"category"`
	Amount      float64              `json:"amount"`
	Currency    string               `json:"currency"`
	Status      models.PaymentStatus `json:"status"`
	Method      models.PaymentMethod `json:"payment_method"`
	Description string               `json:"description"`
	DueDate     *time.Time           `json:"due_date"`
	Notes       string               `json:"notes"`
	Notify      bool                 `json:"notify"`
}

func (f NewPaymentForm) validate() validation.Violations {
	v := make(validation.Violations)
	validation.Required("parent_id", f.ParentID, v)
	validation.Required("payment_method", string(f.Method), v)
	validation.PositiveFloat("amount", f.Amount, v)
	validation.OneOf("type", f.Type, paymentTypes, v)
	validation.OneOf("status", string(f.Status), formStatuses, v)
	validation.OneOf("payment_method", string(f.Method), formMethods, v)
	return v
}

// AddPayment stores a manually entered payment. The parent must exist and
// the child, when given, must belong to that parent.
func (s *Service) AddPayment(ctx context.Context, form NewPaymentForm) (models.PaymentRecord, error) {
	v := form.validate()
	if v.Empty() {
		if err := s.checkOwnership(ctx, form, v); err != nil {
			return models.PaymentRecord{}, err
		}
	}
	if !v.Empty() {
		return models.PaymentRecord{}, &FormError{Violations: v}
	}

	record := models.PaymentRecord{
		ID:          uuid.New().String(),
		ParentID:    form.ParentID,
		ChildID:     form.ChildID,
		Amount:      form.Amount,
		Currency:    form.Currency,
		Method:      form.Method,
		Status:      form.Status,
		Description: form.Description,
		Category:    form.Category,
		Notes:       form.Notes,
		DueDate:     form.DueDate,
	}
	if record.Currency == "" {
		record.Currency = models.DefaultCurrency
	}
	if record.Status == "" {
		record.Status = models.PaymentStatusPending
	}
	if record.Category == "" {
		record.Category = models.DefaultCategory
	}
	if record.Description == "" {
		record.Description = record.Category
		if form.Type != "" {
			record.Description += " (" + strings.ReplaceAll(form.Type, "_", " ") + ")"
		}
	}

	if err := s.store.CreatePayment(ctx, &record); err != nil {
		return models.PaymentRecord{}, fmt.Errorf("failed to save payment: %w", err)
	}

	s.logger.Info("Payment added manually",
		zap.String("payment_id", record.ID),
		zap.String("parent_id", record.ParentID),
		zap.Float64("amount", record.Amount),
		zap.String("status", string(record.Status)),
	)

	if err := s.analytics.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}

	if form.Notify {
		switch record.Status {
		case models.PaymentStatusPaid:
			s.notifier.SendPaymentConfirmation(ctx, record)
		case models.PaymentStatusOverdue:
			s.notifier.SendPaymentOverdueNotification(ctx, record)
		default:
			s.notifier.SendPaymentReminder(ctx, record)
		}
	}
	return record, nil
}

// checkOwnership adds violations for an unknown parent or a child of another
// parent. Store errors other than not found are returned.
func (s *Service) checkOwnership(ctx context.Context, form NewPaymentForm, v validation.Violations) error {
	if _, err := s.store.GetUser(ctx, form.ParentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v["parent_id"] = "not_found"
			return nil
		}
		return fmt.Errorf("failed to look up parent: %w", err)
	}
	if form.ChildID == "" {
		return nil
	}
	child, err := s.store.GetChild(ctx, form.ChildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v["child_id"] = "not_found"
			return nil
		}
		return fmt.Errorf("failed to look up child: %w", err)
	}
	if child.ParentID != form.ParentID {
		v["child_id"] = "not_owned_by_parent"
	}
	return nil
}

// SweepOverdue moves pending records past their due date to overdue and
// notifies the payer. It returns how many records changed.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.store.ListPayments(ctx, models.PaymentFilter{Status: models.PaymentStatusPending})
	if err != nil {
		return 0, fmt.Errorf("failed to load pending payments: %w", err)
	}

	swept := 0
	for _, p := range pending {
		if !p.IsOverdueAt(now) {
			continue
		}
		res := s.payments.UpdatePaymentStatus(ctx, p.ID, models.PaymentStatusOverdue,
			"Marked overdue on "+now.Format("2006-01-02"))
		if !res.OK() {
			s.logger.Warn("Failed to mark payment overdue", zap.String("payment_id", p.ID), zap.Error(res.Err))
			continue
		}
		s.notifier.SendPaymentOverdueNotification(ctx, res.Data)
		swept++
	}
	if swept > 0 {
		s.logger.Info("Overdue payments swept", zap.Int("count", swept))
	}
	return swept, nil
}

func (s *Service) Dashboard(ctx context.Context) models.Dashboard {
	return s.analytics.Dashboard(ctx)
}

func (s *Service) Report(ctx context.Context, name string) (any, bool, error) {
	return s.analytics.Report(ctx, name)
}

// nameResolver memoises user and child lookups for one listing.
type nameResolver struct {
	store    Store
	parents  map[string]string
	children map[string]string
}

func newNameResolver(s Store) *nameResolver {
	return &nameResolver{store: s, parents: map[string]string{}, children: map[string]string{}}
}

func (n *nameResolver) row(ctx context.Context, p models.PaymentRecord) PaymentRow {
	row := PaymentRow{PaymentRecord: p}

	name, ok := n.parents[p.ParentID]
	if !ok {
		name = p.ParentID
		if u, err := n.store.GetUser(ctx, p.ParentID); err == nil {
			name = u.FullName()
		}
		n.parents[p.ParentID] = name
	}
	row.ParentName = name

	if p.ChildID != "" {
		name, ok := n.children[p.ChildID]
		if !ok {
			if c, err := n.store.GetChild(ctx, p.ChildID); err == nil {
				name = c.FullName()
			}
			n.children[p.ChildID] = name
		}
		row.ChildName = name
	}
	return row
}
