package models

import "time"

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodCash         PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodBankTransfer, PaymentMethodPayPal, PaymentMethodCash:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusOverdue    PaymentStatus = "overdue"
)

// AllStatuses lists every status in display order.
var AllStatuses = []PaymentStatus{
	PaymentStatusPaid,
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusOverdue,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

func (s PaymentStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether an administrator may move a record from s to next
// with a plain status change. Refunded is never a direct target: a paid record
// only becomes refunded through the refund flow. Refunded itself is terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !s.Valid() || !next.Valid() || s == next {
		return false
	}
	switch next {
	case PaymentStatusRefunded:
		return false
	case PaymentStatusProcessing:
		return s == PaymentStatusPending
	}
	switch s {
	case PaymentStatusRefunded:
		return false
	case PaymentStatusFailed:
		return next == PaymentStatusPending
	}
	return next != PaymentStatusFailed || s == PaymentStatusProcessing
}

const DefaultCurrency = "USD"

const DefaultCategory = "tuition"

// Metadata keys recognised on a PaymentRequest.
const (
	MetadataCategory = "category"
	MetadataDueDate  = "due_date"
)

// PaymentRequest is the intent to pay. It only lives for one gateway attempt.
type PaymentRequest struct {
	ParentID    string            `json:"parent_id"`
	ChildID     string            `json:"child_id,omitempty"`
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Description string            `json:"description"`
	Method      PaymentMethod     `json:"payment_method"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// credit_card
	CardNumber     string `json:"card_number,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	CVV            string `json:"cvv,omitempty"`
	CardholderName string `json:"cardholder_name,omitempty"`

	// bank_transfer
	BankAccount   string `json:"bank_account,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`

	// paypal
	PayPalEmail string `json:"paypal_email,omitempty"`
}

// Category returns the requested category or DefaultCategory.
func (r PaymentRequest) Category() string {
	if c := r.Metadata[MetadataCategory]; c != "" {
		return c
	}
	return DefaultCategory
}

// PaymentResponse is the outcome of one gateway attempt.
type PaymentResponse struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transaction_id,omitempty"`
	ReceiptURL    string            `json:"receipt_url,omitempty"`
	Status        PaymentStatus     `json:"status"`
	Error         string            `json:"error,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// PaymentRecord is the persisted row of the payments table.
type PaymentRecord struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transaction_id,omitempty"`
	ParentID      string        `json:"parent_id"`
	ChildID       string        `json:"child_id,omitempty"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Method        PaymentMethod `json:"payment_method"`
	Status        PaymentStatus `json:"status"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	ReceiptURL    string        `json:"receipt_url,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Reference returns the identifier shown to payers: the gateway transaction id when
// there is one, otherwise the record id.
func (p PaymentRecord) Reference() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.ID
}

// IsOverdueAt reports whether a pending record is past its due date.
func (p PaymentRecord) IsOverdueAt(now time.Time) bool {
	return p.Status == PaymentStatusPending && p.DueDate != nil && p.DueDate.Before(now)
}

// ReceiptData is a read-only projection of a record joined with the payer.
type ReceiptData struct {
	ReceiptNumber string        `json:"receipt_number"`
	PaymentID     string        `json:"payment_id"`
	TransactionID string        `json:"transaction_id,omitempty"`
	ParentName    string        `json:"parent_name"`
	ParentEmail   string        `json:"parent_email"`
	ChildName     string        `json:"child_name,omitempty"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Method        PaymentMethod `json:"payment_method"`
	Status        PaymentStatus `json:"status"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	IssuedAt      time.Time     `json:"issued_at"`
}

// PaymentFilter narrows a payments listing. Zero values mean "any".
type PaymentFilter struct {
	ParentID string
	Status   PaymentStatus
	From     time.Time
	To       time.Time
}

// Match reports whether p passes the filter.
func (f PaymentFilter) Match(p PaymentRecord) bool {
	if f.ParentID != "" && p.ParentID != f.ParentID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && p.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !p.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Event types published on the payments topic.
const (
	EventPaymentSuccess       = "payment_success"
	EventPaymentFailed        = "payment_failed"
	EventPaymentRefunded      = "payment_refunded"
	EventPaymentStatusChanged = "payment_status_changed"
)

type PaymentEvent struct {
	EventType     string        `json:"event_type"`
	PaymentID     string        `json:"payment_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	ParentID      string        `json:"parent_id"`
	Amount        float64       `json:"amount"`
	Method        PaymentMethod `json:"payment_method,omitempty"`
	Status        PaymentStatus `json:"status"`
	Category      string        `json:"category,omitempty"`
	Error         string        `json:"error,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
