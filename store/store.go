// Package store is the data store collaborator: payments, users/children and
// notifications. Implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"

	"kinder-payment-svc/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidAmount = errors.New("payment amount must be greater than zero")
	ErrInvalidStatus = errors.New("invalid payment status")
	// ErrStatusConflict means the record was no longer in the expected status
	// when a conditional update ran.
	ErrStatusConflict = errors.New("payment status changed concurrently")
)

type PaymentStore interface {
	// CreatePayment assigns ID and timestamps when they are empty.
	CreatePayment(ctx context.Context, p *models.PaymentRecord) error
	GetPayment(ctx context.Context, id string) (models.PaymentRecord, error)
	// FindPayment looks a record up by transaction id, then by record id.
	FindPayment(ctx context.Context, ref string) (models.PaymentRecord, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error)
	// UpdatePaymentStatus moves a record from status from to status to. It fails
	// with ErrStatusConflict when the record is not in from. It stamps paid_at on
	// the first transition to paid and appends note (when non-empty) to the notes.
	UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus, note string) (models.PaymentRecord, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	GetChild(ctx context.Context, id string) (models.Child, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Store is everything the service reads and writes. Both PostgresStore and
// MemoryStore implement it.
type Store interface {
	PaymentStore
	UserStore
	NotificationStore
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func validateRecord(p *models.PaymentRecord) error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
