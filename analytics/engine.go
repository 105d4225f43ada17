// Package analytics computes read-only aggregates over payment records.
package analytics

import (
	"context"
	"fmt"
	"time"

	"kinder-payment-svc/circuitbreaker"
	"kinder-payment-svc/models"

	"go.uber.org/zap"
)

type PaymentSource interface {
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentRecord, error)
}

// Engine recomputes every aggregate from the full record set on each call. Load
// failures are returned to the caller; substituting defaults is left to Dashboards.
type Engine struct {
	source  PaymentSource
	breaker *circuitbreaker.CircuitBreaker
	jitter  Jitter
	logger  *zap.Logger
	now     func() time.Time
}

func NewEngine(source PaymentSource, jitter Jitter, logger *zap.Logger) *Engine {
	return &Engine{
		source:  source,
		breaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		jitter:  jitter,
		logger:  logger,
		now:     time.Now,
	}
}

func (e *Engine) load(ctx context.Context) ([]models.PaymentRecord, error) {
	var payments []models.PaymentRecord
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		payments, err = e.source.ListPayments(ctx, models.PaymentFilter{})
		return err
	})
	if err != nil {
		e.logger.Error("Failed to load payments for analytics",
			zap.String("circuit_state", e.breaker.GetState().String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return payments, nil
}

func (e *Engine) Summary(ctx context.Context) (models.Summary, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return models.Summary{}, err
	}
	return ComputeSummary(payments, e.now()), nil
}

func (e *Engine) MethodDistribution(ctx context.Context) ([]models.MethodDistribution, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeMethodDistribution(payments), nil
}

func (e *Engine) CategoryDistribution(ctx context.Context) ([]models.CategoryDistribution, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeCategoryDistribution(payments), nil
}

func (e *Engine) StatusDistribution(ctx context.Context) ([]models.StatusDistribution, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeStatusDistribution(payments), nil
}

func (e *Engine) MonthlyRevenue(ctx context.Context) ([]models.MonthlyRevenue, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeMonthlyRevenue(payments, e.now()), nil
}

func (e *Engine) Forecast(ctx context.Context) ([]models.RevenueForecast, error) {
	monthly, err := e.MonthlyRevenue(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeForecast(monthly, e.now(), e.jitter), nil
}

func (e *Engine) Trends(ctx context.Context) (models.TrendAnalysis, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return models.TrendAnalysis{}, err
	}
	now := e.now()
	return ComputeTrends(ComputeMonthlyRevenue(payments, now), ComputeCategoryDistribution(payments), e.jitter), nil
}

// Dashboard computes every card from a single load.
func (e *Engine) Dashboard(ctx context.Context) (models.Dashboard, error) {
	payments, err := e.load(ctx)
	if err != nil {
		return models.Dashboard{}, err
	}
	now := e.now()
	monthly := ComputeMonthlyRevenue(payments, now)
	categories := ComputeCategoryDistribution(payments)
	return models.Dashboard{
		Summary:     ComputeSummary(payments, now),
		Methods:     ComputeMethodDistribution(payments),
		Categories:  categories,
		Statuses:    ComputeStatusDistribution(payments),
		Monthly:     monthly,
		Forecast:    ComputeForecast(monthly, now, e.jitter),
		Trends:      ComputeTrends(monthly, categories, e.jitter),
		GeneratedAt: now,
	}, nil
}
