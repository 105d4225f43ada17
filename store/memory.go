package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kinder-payment-svc/models"

	"github.com/google/uuid"
)

// MemoryStore keeps every table in maps. It backs tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu            sync.RWMutex
	payments      map[string]models.PaymentRecord
	users         map[string]models.User
	children      map[string]models.Child
	notifications map[string]models.Notification
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:      make(map[string]models.PaymentRecord),
		users:         make(map[string]models.User),
		children:      make(map[string]models.Child),
		notifications: make(map[string]models.Notification),
		now:           time.Now,
	}
}

func (s *MemoryStore) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) AddChild(c models.Child) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[c.ID] = c
}

func (s *MemoryStore) CreatePayment(ctx context.Context, p *models.PaymentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == models.PaymentStatusPaid && p.PaidAt == nil {
		p.PaidAt = &now
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPayment(ctx context.Context, id string) (models.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.PaymentRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return models.PaymentRecord{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindPayment(ctx context.Context, ref string) (models.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.PaymentRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ref == "" {
		return models.PaymentRecord{}, ErrNotFound
	}
	for _, p := range s.payments {
		if p.TransactionID == ref {
			return p, nil
		}
	}
	if p, ok := s.payments[ref]; ok {
		return p, nil
	}
	return models.PaymentRecord{}, ErrNotFound
}

func (s *MemoryStore) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.PaymentRecord, 0, len(s.payments))
	for _, p := range s.payments {
		if filter.Match(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus, note string) (models.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.PaymentRecord{}, err
	}
	if !to.Valid() {
		return models.PaymentRecord{}, ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return models.PaymentRecord{}, ErrNotFound
	}
	if p.Status != from {
		return p, fmt.Errorf("%w: payment is %s, expected %s", ErrStatusConflict, p.Status, from)
	}
	now := s.now()
	p.Status = to
	p.UpdatedAt = now
	if to == models.PaymentStatusPaid && p.PaidAt == nil {
		p.PaidAt = &now
	}
	if note != "" {
		if p.Notes == "" {
			p.Notes = note
		} else {
			p.Notes += "\n" + note
		}
	}
	s.payments[id] = p
	return p, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.User
	for _, u := range s.users {
		if u.Role == role {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) GetChild(ctx context.Context, id string) (models.Child, error) {
	if err := ctx.Err(); err != nil {
		return models.Child{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[id]
	if !ok {
		return models.Child{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications[n.ID] = *n
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
		}
	}
	return nil
}
