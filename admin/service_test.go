package admin

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"kinder-payment-svc/analytics"
	"kinder-payment-svc/config"
	"kinder-payment-svc/gateway"
	"kinder-payment-svc/models"
	"kinder-payment-svc/notification"
	"kinder-payment-svc/store"
	"kinder-payment-svc/usecase"
	"kinder-payment-svc/validation"

	"go.uber.org/zap/zaptest"
)

var base = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *store.MemoryStore
}

func setupService(t *testing.T) fixture {
	t.Helper()
	s := store.NewMemoryStore()
	s.AddUser(models.User{ID: "parent-1", FirstName: "Pat", LastName: "Jones", Email: "pat@example.com", Role: models.RoleParent})
	s.AddUser(models.User{ID: "parent-2", FirstName: "Alex", LastName: "Brown", Email: "alex@example.com", Role: models.RoleParent})
	s.AddUser(models.User{ID: "admin-1", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin})
	s.AddChild(models.Child{ID: "child-1", FirstName: "Kim", LastName: "Jones", ParentID: "parent-1"})
	s.AddChild(models.Child{ID: "child-2", FirstName: "Sam", LastName: "Brown", ParentID: "parent-2"})

	logger := zaptest.NewLogger(t)
	notifier := notification.NewDispatcher(s, s, logger)
	gw := gateway.New(config.GatewayConfig{Timeout: time.Second, InitialDelay: time.Millisecond}, gateway.Deps{
		Store:     s,
		Directory: s,
		Notifier:  notifier,
		Logger:    logger,
	})
	payments := usecase.NewPayments(gw, s, nil, logger)
	dashboards := analytics.NewDashboards(analytics.NewEngine(s, analytics.FixedJitter(1), logger), nil, logger)

	svc := NewService(s, payments, notifier, dashboards, 3, logger)
	svc.now = func() time.Time { return base }
	return fixture{svc: svc, store: s}
}

func (f fixture) seed(t *testing.T, p models.PaymentRecord) models.PaymentRecord {
	t.Helper()
	if p.Currency == "" {
		p.Currency = models.DefaultCurrency
	}
	if p.Method == "" {
		p.Method = models.PaymentMethodCash
	}
	if err := f.store.CreatePayment(context.Background(), &p); err != nil {
		t.Fatalf("Failed to seed payment: %v", err)
	}
	return p
}

func (f fixture) notifications(t *testing.T, userID string) []models.Notification {
	t.Helper()
	list, err := f.store.ListNotifications(context.Background(), userID)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	return list
}

func seedListing(t *testing.T, f fixture) {
	t.Helper()
	f.seed(t, models.PaymentRecord{ParentID: "parent-1", ChildID: "child-1", Amount: 300, Status: models.PaymentStatusPaid,
		Description: "March tuition", Category: "tuition", TransactionID: "cc_1_abc", CreatedAt: base.Add(-48 * time.Hour)})
	f.seed(t, models.PaymentRecord{ParentID: "parent-2", ChildID: "child-2", Amount: 50, Status: models.PaymentStatusPending,
		Description: "Field trip", Category: "activities", CreatedAt: base.Add(-24 * time.Hour)})
	f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 120, Status: models.PaymentStatusOverdue,
		Description: "Lunch plan", Category: "meals", CreatedAt: base})
}

func TestListPayments_Query(t *testing.T) {
	f := setupService(t)
	seedListing(t, f)

	tests := []struct {
		name      string
		query     ListQuery
		wantDescs []string
		wantTotal int
	}{
		{"default newest first", ListQuery{}, []string{"Lunch plan", "Field trip", "March tuition"}, 3},
		{"search parent name", ListQuery{Search: "alex"}, []string{"Field trip"}, 1},
		{"search child name", ListQuery{Search: "KIM"}, []string{"March tuition"}, 1},
		{"search transaction id", ListQuery{Search: "cc_1"}, []string{"March tuition"}, 1},
		{"status filter", ListQuery{Status: models.PaymentStatusOverdue}, []string{"Lunch plan"}, 1},
		{"category filter", ListQuery{Category: "Activities"}, []string{"Field trip"}, 1},
		{"amount ascending", ListQuery{SortBy: SortAmount}, []string{"Field trip", "Lunch plan", "March tuition"}, 3},
		{"amount descending", ListQuery{SortBy: SortAmount, Desc: true}, []string{"March tuition", "Lunch plan", "Field trip"}, 3},
		{"parent name", ListQuery{SortBy: SortParent}, []string{"Field trip", "Lunch plan", "March tuition"}, 3},
		{"second page", ListQuery{SortBy: SortAmount, Page: 2, PageSize: 2}, []string{"March tuition"}, 3},
		{"no match", ListQuery{Search: "nothing"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.ListPayments(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("ListPayments returned error: %v", err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Expected total %d, got %d", tt.wantTotal, page.Total)
			}
			if len(page.Items) != len(tt.wantDescs) {
				t.Fatalf("Expected %d items, got %d", len(tt.wantDescs), len(page.Items))
			}
			for i, want := range tt.wantDescs {
				if page.Items[i].Description != want {
					t.Errorf("Item %d: expected %q, got %q", i, want, page.Items[i].Description)
				}
			}
		})
	}
}

func TestListPayments_PageBounds(t *testing.T) {
	f := setupService(t)
	seedListing(t, f)

	page, err := f.svc.ListPayments(context.Background(), ListQuery{PageSize: 500, Page: 9})
	if err != nil {
		t.Fatalf("ListPayments returned error: %v", err)
	}
	if page.PageSize != maxPageSize {
		t.Errorf("Expected page size clamped to %d, got %d", maxPageSize, page.PageSize)
	}
	if len(page.Items) != 0 || page.TotalPages != 1 {
		t.Errorf("Expected empty page 9 of 1, got %d items of %d pages", len(page.Items), page.TotalPages)
	}
}

func TestListPayments_HugePageNumber(t *testing.T) {
	f := setupService(t)
	seedListing(t, f)

	for _, page := range []int{math.MaxInt64 / 50, math.MaxInt64} {
		got, err := f.svc.ListPayments(context.Background(), ListQuery{Page: page, PageSize: 100})
		if err != nil {
			t.Fatalf("ListPayments returned error: %v", err)
		}
		if len(got.Items) != 0 || got.Total != 3 || got.Page != page {
			t.Errorf("Page %d: expected an empty page of 3 total, got %d items, total %d, page %d",
				page, len(got.Items), got.Total, got.Page)
		}
	}
}

func TestView_JoinsNames(t *testing.T) {
	f := setupService(t)
	p := f.seed(t, models.PaymentRecord{ParentID: "parent-1", ChildID: "child-1", Amount: 10, Status: models.PaymentStatusPending})

	row, err := f.svc.View(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("View returned error: %v", err)
	}
	if row.ParentName != "Pat Jones" || row.ChildName != "Kim Jones" {
		t.Errorf("Unexpected names: %q / %q", row.ParentName, row.ChildName)
	}

	if _, err := f.svc.View(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRemind(t *testing.T) {
	f := setupService(t)
	pending := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 10, Status: models.PaymentStatusPending})
	overdue := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 20, Status: models.PaymentStatusOverdue})
	paid := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 30, Status: models.PaymentStatusPaid})
	ctx := context.Background()

	if _, err := f.svc.Remind(ctx, pending.ID); err != nil {
		t.Fatalf("Remind pending returned error: %v", err)
	}
	if _, err := f.svc.Remind(ctx, overdue.ID); err != nil {
		t.Fatalf("Remind overdue returned error: %v", err)
	}
	if _, err := f.svc.Remind(ctx, paid.ID); !errors.Is(err, ErrReminderUnavailable) {
		t.Errorf("Expected ErrReminderUnavailable, got %v", err)
	}

	titles := map[string]bool{}
	for _, n := range f.notifications(t, "parent-1") {
		titles[n.Title] = true
	}
	if !titles["Payment reminder"] || !titles["Payment overdue"] {
		t.Errorf("Expected reminder and overdue notices, got %v", titles)
	}
}

func TestRefund_AdminEnteredRecord(t *testing.T) {
	f := setupService(t)
	p := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 80, Status: models.PaymentStatusPaid})

	resp, err := f.svc.Refund(context.Background(), p.ID, 0, "Closed for holidays")
	if err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if !resp.Success || resp.Amount != 80 {
		t.Errorf("Expected full refund of 80, got %+v", resp)
	}

	got, _ := f.store.GetPayment(context.Background(), p.ID)
	if got.Status != models.PaymentStatusRefunded {
		t.Errorf("Expected refunded, got %s", got.Status)
	}
}

func TestMarkPaid(t *testing.T) {
	f := setupService(t)
	p := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 45, Status: models.PaymentStatusPending})

	updated, err := f.svc.MarkPaid(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("MarkPaid returned error: %v", err)
	}
	if updated.Status != models.PaymentStatusPaid || updated.PaidAt == nil {
		t.Errorf("Expected paid with PaidAt, got %+v", updated)
	}
	if len(f.notifications(t, "parent-1")) != 1 {
		t.Errorf("Expected one confirmation for the parent")
	}

	if _, err := f.svc.MarkPaid(context.Background(), p.ID); !errors.Is(err, usecase.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition when already paid, got %v", err)
	}
}

func TestReceipt(t *testing.T) {
	f := setupService(t)
	p := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 45, Status: models.PaymentStatusPaid})

	receipt, err := f.svc.Receipt(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Receipt returned error: %v", err)
	}
	if receipt.ParentName != "Pat Jones" || receipt.Amount != 45 {
		t.Errorf("Unexpected receipt: %+v", receipt)
	}
}

func TestBulk_ReportsEachItem(t *testing.T) {
	f := setupService(t)
	pending := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 10, Status: models.PaymentStatusPending})
	paid := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 20, Status: models.PaymentStatusPaid})

	report, err := f.svc.Bulk(context.Background(), BulkRequest{
		Action: BulkMarkPaid,
		IDs:    []string{pending.ID, "missing", paid.ID},
	})
	if err != nil {
		t.Fatalf("Bulk returned error: %v", err)
	}
	if report.Total != 3 || report.Succeeded != 1 || report.Failed != 2 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	if report.Items[0].ID != pending.ID || !report.Items[0].Success {
		t.Errorf("Expected first item to succeed, got %+v", report.Items[0])
	}
	for _, item := range report.Items[1:] {
		if item.Success || item.Error == "" {
			t.Errorf("Expected failure with message, got %+v", item)
		}
	}
}

func TestBulk_MarkPendingAndRemind(t *testing.T) {
	f := setupService(t)
	failed := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 10, Status: models.PaymentStatusFailed})

	report, err := f.svc.Bulk(context.Background(), BulkRequest{Action: BulkMarkPending, IDs: []string{failed.ID}})
	if err != nil || report.Succeeded != 1 {
		t.Fatalf("Expected mark_pending to succeed, got %+v, %v", report, err)
	}

	report, err = f.svc.Bulk(context.Background(), BulkRequest{Action: BulkSendReminder, IDs: []string{failed.ID}})
	if err != nil || report.Succeeded != 1 {
		t.Fatalf("Expected send_reminder to succeed, got %+v, %v", report, err)
	}
}

func TestBulk_RejectsBadRequests(t *testing.T) {
	f := setupService(t)

	if _, err := f.svc.Bulk(context.Background(), BulkRequest{Action: "delete", IDs: []string{"x"}}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}
	if _, err := f.svc.Bulk(context.Background(), BulkRequest{Action: BulkMarkPaid}); !errors.Is(err, ErrNoItems) {
		t.Errorf("Expected ErrNoItems, got %v", err)
	}
}

func TestAddPayment_Violations(t *testing.T) {
	f := setupService(t)

	tests := []struct {
		name  string
		form  NewPaymentForm
		field string
		want  string
	}{
		{"missing parent", NewPaymentForm{Amount: 10, Method: models.PaymentMethodCash}, "parent_id", "required"},
		{"zero amount", NewPaymentForm{ParentID: "parent-1", Method: models.PaymentMethodCash}, "amount", "must_be_positive"},
		{"bad method", NewPaymentForm{ParentID: "parent-1", Amount: 10, Method: "barter"}, "payment_method", "invalid_choice"},
		{"bad status", NewPaymentForm{ParentID: "parent-1", Amount: 10, Method: models.PaymentMethodCash, Status: models.PaymentStatusRefunded}, "status", "invalid_choice"},
		{"bad type", NewPaymentForm{ParentID: "parent-1", Amount: 10, Method: models.PaymentMethodCash, Type: "weekly"}, "type", "invalid_choice"},
		{"unknown parent", NewPaymentForm{ParentID: "ghost", Amount: 10, Method: models.PaymentMethodCash}, "parent_id", "not_found"},
		{"unknown child", NewPaymentForm{ParentID: "parent-1", ChildID: "ghost", Amount: 10, Method: models.PaymentMethodCash}, "child_id", "not_found"},
		{"child of another parent", NewPaymentForm{ParentID: "parent-1", ChildID: "child-2", Amount: 10, Method: models.PaymentMethodCash}, "child_id", "not_owned_by_parent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddPayment(context.Background(), tt.form)
			var formErr *FormError
			if !errors.As(err, &formErr) {
				t.Fatalf("Expected FormError, got %v", err)
			}
			if formErr.Violations[tt.field] != tt.want {
				t.Errorf("Expected %s=%s, got %v", tt.field, tt.want, formErr.Violations)
			}
		})
	}

	list, _ := f.store.ListPayments(context.Background(), models.PaymentFilter{})
	if len(list) != 0 {
		t.Errorf("Expected nothing stored, got %d records", len(list))
	}
}

func TestAddPayment_StoresAndNotifies(t *testing.T) {
	f := setupService(t)
	due := base.AddDate(0, 0, 14)

	record, err := f.svc.AddPayment(context.Background(), NewPaymentForm{
		ParentID: "parent-1",
		ChildID:  "child-1",
		Type:     "one_time",
		Category: "activities",
		Amount:   35,
		Method:   models.PaymentMethodBankTransfer,
		DueDate:  &due,
		Notify:   true,
	})
	if err != nil {
		t.Fatalf("AddPayment returned error: %v", err)
	}
	if record.Status != models.PaymentStatusPending || record.Currency != models.DefaultCurrency {
		t.Errorf("Expected pending USD defaults, got %+v", record)
	}
	if record.Description != "activities (one time)" {
		t.Errorf("Unexpected description %q", record.Description)
	}

	stored, err := f.store.GetPayment(context.Background(), record.ID)
	if err != nil || stored.TransactionID != "" {
		t.Errorf("Expected stored record without transaction id, got %+v, %v", stored, err)
	}

	notes := f.notifications(t, "parent-1")
	if len(notes) != 1 || notes[0].Title != "Payment reminder" {
		t.Errorf("Expected one reminder, got %+v", notes)
	}
}

func TestSweepOverdue(t *testing.T) {
	f := setupService(t)
	past := base.AddDate(0, 0, -1)
	future := base.AddDate(0, 0, 7)
	late := f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 10, Status: models.PaymentStatusPending, DueDate: &past})
	f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 20, Status: models.PaymentStatusPending, DueDate: &future})
	f.seed(t, models.PaymentRecord{ParentID: "parent-2", Amount: 30, Status: models.PaymentStatusPending})

	n, err := f.svc.SweepOverdue(context.Background(), base)
	if err != nil {
		t.Fatalf("SweepOverdue returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 swept record, got %d", n)
	}

	got, _ := f.store.GetPayment(context.Background(), late.ID)
	if got.Status != models.PaymentStatusOverdue {
		t.Errorf("Expected overdue, got %s", got.Status)
	}
	notes := f.notifications(t, "parent-1")
	if len(notes) != 1 || notes[0].Type != models.NotificationWarning {
		t.Errorf("Expected one overdue warning, got %+v", notes)
	}

	if n, _ := f.svc.SweepOverdue(context.Background(), base); n != 0 {
		t.Errorf("Expected second sweep to change nothing, got %d", n)
	}
}

func TestDashboardAndReport(t *testing.T) {
	f := setupService(t)
	f.seed(t, models.PaymentRecord{ParentID: "parent-1", Amount: 100, Status: models.PaymentStatusPaid, Category: "tuition"})

	d := f.svc.Dashboard(context.Background())
	if d.Fallback || d.Summary.TotalRevenue != 100 {
		t.Errorf("Unexpected dashboard summary: %+v", d.Summary)
	}

	if _, _, err := f.svc.Report(context.Background(), "nope"); !errors.Is(err, analytics.ErrUnknownReport) {
		t.Errorf("Expected ErrUnknownReport, got %v", err)
	}
}

func TestFormError_Message(t *testing.T) {
	err := &FormError{Violations: validation.Violations{"amount": "must_be_positive"}}
	if err.Error() != "invalid payment form: amount: must_be_positive" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
