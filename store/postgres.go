package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kinder-payment-svc/models"

	"github.com/google/uuid"
)

const paymentColumns = `id, COALESCE(transaction_id, ''), parent_id, COALESCE(child_id, ''), amount, currency,
	payment_method, status, description, category, COALESCE(receipt_url, ''), COALESCE(notes, ''),
	due_date, paid_at, created_at, updated_at`

// PostgresStore implements PaymentStore, UserStore and NotificationStore on lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (models.PaymentRecord, error) {
	var (
		p       models.PaymentRecord
		dueDate sql.NullTime
		paidAt  sql.NullTime
	)
	err := row.Scan(&p.ID, &p.TransactionID, &p.ParentID, &p.ChildID, &p.Amount, &p.Currency,
		&p.Method, &p.Status, &p.Description, &p.Category, &p.ReceiptURL, &p.Notes,
		&dueDate, &paidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if dueDate.Valid {
		p.DueDate = &dueDate.Time
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) CreatePayment(ctx context.Context, p *models.PaymentRecord) error {
	if err := validateRecord(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO payments (id, transaction_id, parent_id, child_id, amount, currency, payment_method,
			status, description, category, receipt_url, notes, due_date, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			CASE WHEN $8 = 'paid' THEN COALESCE($14, CURRENT_TIMESTAMP) ELSE $14 END)
		RETURNING created_at, updated_at, paid_at`,
		p.ID, nullString(p.TransactionID), p.ParentID, nullString(p.ChildID), p.Amount, p.Currency,
		p.Method, p.Status, p.Description, p.Category, nullString(p.ReceiptURL), nullString(p.Notes),
		nullTime(p.DueDate), nullTime(p.PaidAt),
	).Scan(&p.CreatedAt, &p.UpdatedAt, &paidAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return nil
}

func (s *PostgresStore) GetPayment(ctx context.Context, id string) (models.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
	p, err := scanPayment(row)
	return p, notFound(err)
}

func (s *PostgresStore) FindPayment(ctx context.Context, ref string) (models.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE transaction_id = $1 OR id = $1 "+
			"ORDER BY COALESCE(transaction_id = $1, FALSE) DESC LIMIT 1", ref)
	p, err := scanPayment(row)
	return p, notFound(err)
}

func (s *PostgresStore) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error) {
	query := "SELECT " + paymentColumns + " FROM payments"
	var (
		conds []string
		args  []any
	)
	argPos := 1
	if filter.ParentID != "" {
		conds = append(conds, fmt.Sprintf("parent_id = $%d", argPos))
		args = append(args, filter.ParentID)
		argPos++
	}
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if !filter.From.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, filter.To)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdatePaymentStatus only matches the row while it is still in status from, so
// two concurrent transitions cannot both apply.
func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus, note string) (models.PaymentRecord, error) {
	if !to.Valid() {
		return models.PaymentRecord{}, ErrInvalidStatus
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP,
			paid_at = CASE WHEN $1 = 'paid' THEN COALESCE(paid_at, CURRENT_TIMESTAMP) ELSE paid_at END,
			notes = CASE WHEN $2 = '' THEN notes
				WHEN COALESCE(notes, '') = '' THEN $2
				ELSE notes || E'\n' || $2 END
		WHERE id = $3 AND status = $4
		RETURNING `+paymentColumns,
		to, note, id, from)
	p, err := scanPayment(row)
	if !errors.Is(err, sql.ErrNoRows) {
		return p, err
	}

	var current models.PaymentStatus
	err = s.db.QueryRowContext(ctx, "SELECT status FROM payments WHERE id = $1", id).Scan(&current)
	if err != nil {
		return models.PaymentRecord{}, notFound(err)
	}
	return models.PaymentRecord{}, fmt.Errorf("%w: payment is %s, expected %s", ErrStatusConflict, current, from)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, email, role FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role)
	return u, notFound(err)
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, first_name, last_name, email, role FROM users WHERE role = $1 ORDER BY id", role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) GetChild(ctx context.Context, id string) (models.Child, error) {
	var c models.Child
	err := s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, parent_id FROM children WHERE id = $1", id,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.ParentID)
	return c, notFound(err)
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, read, link)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Read, nullString(n.Link),
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, message, type, read, COALESCE(link, ''), created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var result []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.Link, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE", userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
