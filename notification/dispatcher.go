// Package notification turns payment outcomes into stored user-facing messages.
package notification

import (
	"context"
	"fmt"

	"kinder-payment-svc/middleware"
	"kinder-payment-svc/models"

	"go.uber.org/zap"
)

type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type AdminDirectory interface {
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// AdminNotice is what every administrator sees about one payment outcome.
type AdminNotice struct {
	ParentName  string
	ChildName   string
	Amount      float64
	Currency    string
	Status      models.PaymentStatus
	Description string
}

// Dispatcher's Send methods never return errors: a failed insert is logged and
// counted so it cannot block a payment outcome.
type Dispatcher struct {
	store  Store
	users  AdminDirectory
	logger *zap.Logger
}

func NewDispatcher(store Store, users AdminDirectory, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, users: users, logger: logger}
}

func (d *Dispatcher) SendPaymentConfirmation(ctx context.Context, p models.PaymentRecord) {
	title := "Payment received"
	msg := fmt.Sprintf("Your payment of %s for %s was processed successfully.", money(p.Amount, p.Currency), p.Description)
	if p.Status == models.PaymentStatusPending {
		title = "Payment registered"
		msg = fmt.Sprintf("Your %s payment of %s for %s is registered and awaits collection.",
			p.Method, money(p.Amount, p.Currency), p.Description)
	}
	d.send(ctx, "payment_confirmation", models.Notification{
		UserID:  p.ParentID,
		Title:   title,
		Message: msg,
		Type:    models.NotificationSuccess,
		Link:    paymentLink(p.Reference()),
	})
}

func (d *Dispatcher) SendPaymentFailure(ctx context.Context, parentID string, amount float64, currency, reason string) {
	d.send(ctx, "payment_failure", models.Notification{
		UserID:  parentID,
		Title:   "Payment failed",
		Message: fmt.Sprintf("Your payment of %s could not be processed: %s", money(amount, currency), reason),
		Type:    models.NotificationError,
	})
}

func (d *Dispatcher) SendRefundNotification(ctx context.Context, p models.PaymentRecord, refundAmount float64) {
	d.send(ctx, "refund", models.Notification{
		UserID:  p.ParentID,
		Title:   "Payment refunded",
		Message: fmt.Sprintf("A refund of %s for %s has been issued.", money(refundAmount, p.Currency), p.Description),
		Type:    models.NotificationInfo,
		Link:    paymentLink(p.Reference()),
	})
}

func (d *Dispatcher) SendPaymentReminder(ctx context.Context, p models.PaymentRecord) {
	msg := fmt.Sprintf("Reminder: a payment of %s for %s is outstanding.", money(p.Amount, p.Currency), p.Description)
	if p.DueDate != nil {
		msg = fmt.Sprintf("Reminder: a payment of %s for %s is due on %s.",
			money(p.Amount, p.Currency), p.Description, p.DueDate.Format("2006-01-02"))
	}
	d.send(ctx, "reminder", models.Notification{
		UserID:  p.ParentID,
		Title:   "Payment reminder",
		Message: msg,
		Type:    models.NotificationInfo,
		Link:    paymentLink(p.Reference()),
	})
}

func (d *Dispatcher) SendPaymentOverdueNotification(ctx context.Context, p models.PaymentRecord) {
	d.send(ctx, "overdue", models.Notification{
		UserID:  p.ParentID,
		Title:   "Payment overdue",
		Message: fmt.Sprintf("Your payment of %s for %s is overdue. Please pay as soon as possible.", money(p.Amount, p.Currency), p.Description),
		Type:    models.NotificationWarning,
		Link:    paymentLink(p.Reference()),
	})
}

// SendAdminPaymentNotification fans the notice out to every admin account.
func (d *Dispatcher) SendAdminPaymentNotification(ctx context.Context, notice AdminNotice) {
	admins, err := d.users.ListUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		middleware.RecordNotificationSent("admin_payment", false)
		d.logger.Error("Failed to load admin accounts",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		return
	}

	payer := notice.ParentName
	if notice.ChildName != "" {
		payer = fmt.Sprintf("%s (%s)", notice.ParentName, notice.ChildName)
	}
	nType := models.NotificationInfo
	switch notice.Status {
	case models.PaymentStatusPaid:
		nType = models.NotificationSuccess
	case models.PaymentStatusFailed:
		nType = models.NotificationError
	}

	for _, admin := range admins {
		d.send(ctx, "admin_payment", models.Notification{
			UserID: admin.ID,
			Title:  fmt.Sprintf("Payment %s", notice.Status),
			Message: fmt.Sprintf("%s: %s for %s, status %s.",
				payer, money(notice.Amount, notice.Currency), notice.Description, notice.Status),
			Type: nType,
			Link: "/admin/payments",
		})
	}
}

func (d *Dispatcher) send(ctx context.Context, eventType string, n models.Notification) {
	if err := d.store.CreateNotification(ctx, &n); err != nil {
		middleware.RecordNotificationSent(eventType, false)
		d.logger.Error("Failed to store notification",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("event_type", eventType),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		return
	}
	middleware.RecordNotificationSent(eventType, true)
	d.logger.Info("Notification stored",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("event_type", eventType),
		zap.String("user_id", n.UserID),
	)
}

func (d *Dispatcher) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return d.store.ListNotifications(ctx, userID)
}

func (d *Dispatcher) MarkRead(ctx context.Context, userID, id string) error {
	return d.store.MarkRead(ctx, userID, id)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) error {
	return d.store.MarkAllRead(ctx, userID)
}

func money(amount float64, currency string) string {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func paymentLink(ref string) string {
	return "/payments/" + ref + "/receipt"
}
