package analytics

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"kinder-payment-svc/cache"
	"kinder-payment-svc/middleware"
	"kinder-payment-svc/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrUnknownReport = errors.New("unknown analytics report")

// Report names accepted by Dashboards.Report.
const (
	ReportSummary    = "summary"
	ReportMethods    = "methods"
	ReportCategories = "categories"
	ReportStatuses   = "statuses"
	ReportMonthly    = "monthly"
	ReportForecast   = "forecast"
	ReportTrends     = "trends"
)

const defaultComputeTimeout = 15 * time.Second

type DashboardCache interface {
	GetDashboard(ctx context.Context) (models.Dashboard, error)
	SetDashboard(ctx context.Context, d models.Dashboard) error
	Invalidate(ctx context.Context) error
}

// Dashboards serves analytics to the admin UI. It never returns an error: when
// the engine fails, default datasets are served with Fallback set.
type Dashboards struct {
	engine *Engine
	cache  DashboardCache
	group  singleflight.Group
	logger *zap.Logger

	// generation is bumped by Invalidate; a compute started under an older
	// generation never writes to the cache.
	generation     atomic.Uint64
	computeTimeout time.Duration
}

// NewDashboards accepts a nil cache, in which case every call recomputes.
func NewDashboards(engine *Engine, c DashboardCache, logger *zap.Logger) *Dashboards {
	return &Dashboards{engine: engine, cache: c, logger: logger, computeTimeout: defaultComputeTimeout}
}

func (d *Dashboards) Dashboard(ctx context.Context) models.Dashboard {
	if d.cache != nil {
		cached, err := d.cache.GetDashboard(ctx)
		if err == nil {
			return cached
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			d.logger.Warn("Failed to read cached dashboard", zap.Error(err))
		}
	}

	gen := d.generation.Load()
	v, _, _ := d.group.Do("dashboard-"+strconv.FormatUint(gen, 10), func() (any, error) {
		return d.compute(ctx, gen), nil
	})
	return v.(models.Dashboard)
}

// compute is shared by every caller joined on the flight, so it is detached
// from the first caller's cancellation and bounded by its own timeout.
func (d *Dashboards) compute(ctx context.Context, gen uint64) models.Dashboard {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.computeTimeout)
	defer cancel()

	dashboard, err := d.engine.Dashboard(ctx)
	if err != nil {
		middleware.RecordAnalyticsFallback("dashboard")
		d.logger.Error("Serving default analytics",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		return DefaultDashboard(d.engine.now())
	}

	if d.cache != nil {
		if d.generation.Load() != gen {
			d.logger.Debug("Dropping dashboard computed before invalidation")
			return dashboard
		}
		if err := d.cache.SetDashboard(ctx, dashboard); err != nil {
			d.logger.Warn("Failed to cache dashboard", zap.Error(err))
		}
	}
	return dashboard
}

// Report returns one card of the dashboard by name and whether it holds default data.
func (d *Dashboards) Report(ctx context.Context, name string) (any, bool, error) {
	dashboard := d.Dashboard(ctx)
	var data any
	switch name {
	case ReportSummary:
		data = dashboard.Summary
	case ReportMethods:
		data = dashboard.Methods
	case ReportCategories:
		data = dashboard.Categories
	case ReportStatuses:
		data = dashboard.Statuses
	case ReportMonthly:
		data = dashboard.Monthly
	case ReportForecast:
		data = dashboard.Forecast
	case ReportTrends:
		data = dashboard.Trends
	default:
		return nil, false, ErrUnknownReport
	}
	return data, dashboard.Fallback, nil
}

// Invalidate drops the cached dashboard. Called when a payment event arrives.
func (d *Dashboards) Invalidate(ctx context.Context) error {
	d.generation.Add(1)
	if d.cache == nil {
		return nil
	}
	return d.cache.Invalidate(ctx)
}

// Refresh invalidates and recomputes the dashboard so the next read is warm.
func (d *Dashboards) Refresh(ctx context.Context) {
	start := time.Now()
	if err := d.Invalidate(ctx); err != nil {
		d.logger.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}
	dashboard := d.Dashboard(ctx)
	d.logger.Debug("Dashboard refreshed",
		zap.Bool("fallback", dashboard.Fallback),
		zap.Duration("took", time.Since(start)),
	)
}

// HandlePaymentEvent is a kafka.Handler that invalidates the cache for every
// payment lifecycle event.
func (d *Dashboards) HandlePaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	switch event.EventType {
	case models.EventPaymentSuccess, models.EventPaymentFailed,
		models.EventPaymentRefunded, models.EventPaymentStatusChanged:
		return d.Invalidate(ctx)
	}
	return nil
}
