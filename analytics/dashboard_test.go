package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kinder-payment-svc/cache"
	"kinder-payment-svc/models"
	"kinder-payment-svc/store"

	"go.uber.org/zap/zaptest"
)

type failingSource struct{}

func (failingSource) ListPayments(context.Context, models.PaymentFilter) ([]models.PaymentRecord, error) {
	return nil, errors.New("connection refused")
}

type memoryCache struct {
	dashboard   *models.Dashboard
	sets        int
	invalidated int
}

func (c *memoryCache) GetDashboard(context.Context) (models.Dashboard, error) {
	if c.dashboard == nil {
		return models.Dashboard{}, cache.ErrCacheMiss
	}
	return *c.dashboard, nil
}

func (c *memoryCache) SetDashboard(_ context.Context, d models.Dashboard) error {
	c.sets++
	c.dashboard = &d
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.invalidated++
	c.dashboard = nil
	return nil
}

// gatedSource blocks its first load until release is closed.
type gatedSource struct {
	PaymentSource
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *gatedSource) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		<-s.release
	}
	return s.PaymentSource.ListPayments(ctx, filter)
}

// contextSource fails when the load context is already done.
type contextSource struct {
	PaymentSource
}

func (s contextSource) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.PaymentSource.ListPayments(ctx, filter)
}

func seededSource(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	for _, amount := range []float64{100, 200, 300} {
		if err := s.CreatePayment(ctx, &models.PaymentRecord{
			ParentID: "parent-1",
			Amount:   amount,
			Method:   models.PaymentMethodCreditCard,
			Status:   models.PaymentStatusPaid,
			Category: "tuition",
		}); err != nil {
			t.Fatalf("Failed to seed payment: %v", err)
		}
	}
	return s
}

func TestEngine_PropagatesLoadErrors(t *testing.T) {
	engine := NewEngine(failingSource{}, FixedJitter(1), zaptest.NewLogger(t))

	if _, err := engine.Summary(context.Background()); err == nil {
		t.Error("Expected error, got nil")
	}
	if _, err := engine.Dashboard(context.Background()); err == nil {
		t.Error("Expected error, got nil")
	}
}

func TestDashboards_FallbackOnFailure(t *testing.T) {
	engine := NewEngine(failingSource{}, FixedJitter(1), zaptest.NewLogger(t))
	c := &memoryCache{}
	d := NewDashboards(engine, c, zaptest.NewLogger(t))

	dashboard := d.Dashboard(context.Background())
	if !dashboard.Fallback {
		t.Error("Expected fallback dashboard")
	}
	if dashboard.Summary != DefaultSummary() {
		t.Errorf("Expected default summary, got %+v", dashboard.Summary)
	}
	if c.sets != 0 {
		t.Errorf("Expected fallback not to be cached, got %d sets", c.sets)
	}
}

func TestDashboards_CachesComputedDashboard(t *testing.T) {
	engine := NewEngine(seededSource(t), FixedJitter(1), zaptest.NewLogger(t))
	c := &memoryCache{}
	d := NewDashboards(engine, c, zaptest.NewLogger(t))
	ctx := context.Background()

	first := d.Dashboard(ctx)
	if first.Fallback {
		t.Fatal("Expected computed dashboard")
	}
	if first.Summary.TotalRevenue != 600 {
		t.Errorf("Expected total revenue 600, got %v", first.Summary.TotalRevenue)
	}
	if c.sets != 1 {
		t.Errorf("Expected 1 cache write, got %d", c.sets)
	}

	d.Dashboard(ctx)
	if c.sets != 1 {
		t.Errorf("Expected cache hit, got %d writes", c.sets)
	}

	if err := d.HandlePaymentEvent(ctx, models.PaymentEvent{EventType: models.EventPaymentRefunded}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if c.invalidated != 1 {
		t.Errorf("Expected 1 invalidation, got %d", c.invalidated)
	}
	_ = d.HandlePaymentEvent(ctx, models.PaymentEvent{EventType: "order_created"})
	if c.invalidated != 1 {
		t.Errorf("Expected unrelated events to be ignored, got %d invalidations", c.invalidated)
	}
}

func TestDashboards_Report(t *testing.T) {
	engine := NewEngine(seededSource(t), FixedJitter(1), zaptest.NewLogger(t))
	d := NewDashboards(engine, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	data, fallback, err := d.Report(ctx, ReportMethods)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fallback {
		t.Error("Expected live data")
	}
	methods, ok := data.([]models.MethodDistribution)
	if !ok || len(methods) != 1 || methods[0].Percentage != 100 {
		t.Errorf("Unexpected methods report %+v", data)
	}

	if _, _, err := d.Report(ctx, "bogus"); !errors.Is(err, ErrUnknownReport) {
		t.Errorf("Expected ErrUnknownReport, got %v", err)
	}
}

func TestDashboards_Refresh(t *testing.T) {
	engine := NewEngine(seededSource(t), FixedJitter(1), zaptest.NewLogger(t))
	c := &memoryCache{}
	d := NewDashboards(engine, c, zaptest.NewLogger(t))

	d.Refresh(context.Background())
	if c.invalidated != 1 || c.sets != 1 {
		t.Errorf("Expected invalidate then recompute, got %d/%d", c.invalidated, c.sets)
	}
}

func TestDashboards_InvalidationDuringComputeIsNotOverwritten(t *testing.T) {
	source := &gatedSource{
		PaymentSource: seededSource(t),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	engine := NewEngine(source, FixedJitter(1), zaptest.NewLogger(t))
	c := &memoryCache{}
	d := NewDashboards(engine, c, zaptest.NewLogger(t))
	ctx := context.Background()

	done := make(chan models.Dashboard)
	go func() { done <- d.Dashboard(ctx) }()

	select {
	case <-source.started:
	case <-time.After(time.Second):
		t.Fatal("Compute never started")
	}
	if err := d.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	close(source.release)

	if stale := <-done; stale.Fallback {
		t.Error("Expected the in-flight caller to still get computed data")
	}
	if c.sets != 0 {
		t.Errorf("Expected the stale dashboard not to be cached, got %d writes", c.sets)
	}

	d.Dashboard(ctx)
	if c.sets != 1 {
		t.Errorf("Expected a fresh compute to be cached, got %d writes", c.sets)
	}
}

func TestDashboards_ComputeIgnoresCallerCancellation(t *testing.T) {
	engine := NewEngine(contextSource{seededSource(t)}, FixedJitter(1), zaptest.NewLogger(t))
	c := &memoryCache{}
	d := NewDashboards(engine, c, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dashboard := d.Dashboard(ctx)
	if dashboard.Fallback {
		t.Fatal("Expected a cancelled caller not to fail the shared compute")
	}
	if dashboard.Summary.TotalRevenue != 600 || c.sets != 1 {
		t.Errorf("Expected revenue 600 cached once, got %v with %d writes", dashboard.Summary.TotalRevenue, c.sets)
	}
}

func TestDashboards_ComputeTimeout(t *testing.T) {
	source := &gatedSource{
		PaymentSource: contextSource{seededSource(t)},
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	engine := NewEngine(source, FixedJitter(1), zaptest.NewLogger(t))
	d := NewDashboards(engine, nil, zaptest.NewLogger(t))
	d.computeTimeout = 20 * time.Millisecond

	go func() {
		<-source.started
		time.Sleep(60 * time.Millisecond)
		close(source.release)
	}()

	if dashboard := d.Dashboard(context.Background()); !dashboard.Fallback {
		t.Error("Expected fallback once the compute timeout elapsed")
	}
}
