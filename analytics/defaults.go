package analytics

import (
	"time"

	"kinder-payment-svc/models"
)

// Default datasets shown when payment records cannot be read. Every figure here
// is sample data.

func DefaultSummary() models.Summary {
	return models.Summary{
		TotalRevenue:       45250,
		MonthlyRevenue:     8750,
		PendingPayments:    12,
		PendingAmount:      3600,
		OverduePayments:    3,
		OverdueAmount:      950,
		AveragePayment:     425,
		PaymentSuccessRate: 94.5,
	}
}

func DefaultMethodDistribution() []models.MethodDistribution {
	return []models.MethodDistribution{
		{Method: models.PaymentMethodCreditCard, Count: 58, Amount: 24650, Percentage: 54.5},
		{Method: models.PaymentMethodBankTransfer, Count: 31, Amount: 13150, Percentage: 29.1},
		{Method: models.PaymentMethodPayPal, Count: 12, Amount: 5100, Percentage: 11.3},
		{Method: models.PaymentMethodCash, Count: 6, Amount: 2350, Percentage: 5.1},
	}
}

func DefaultCategoryDistribution() []models.CategoryDistribution {
	return []models.CategoryDistribution{
		{Category: "tuition", Count: 64, Amount: 32000, Percentage: 70.7},
		{Category: "meals", Count: 22, Amount: 6600, Percentage: 14.6},
		{Category: "activities", Count: 15, Amount: 4500, Percentage: 9.9},
		{Category: "materials", Count: 6, Amount: 2150, Percentage: 4.8},
	}
}

func DefaultStatusDistribution() []models.StatusDistribution {
	return []models.StatusDistribution{
		{Status: models.PaymentStatusPaid, Count: 107, Amount: 45250, Percentage: 84.3},
		{Status: models.PaymentStatusPending, Count: 12, Amount: 3600, Percentage: 9.4},
		{Status: models.PaymentStatusOverdue, Count: 3, Amount: 950, Percentage: 2.4},
		{Status: models.PaymentStatusFailed, Count: 5, Amount: 1800, Percentage: 3.9},
	}
}

var defaultMonthlyAmounts = [monthsOfHistory]float64{
	3200, 3400, 3350, 3600, 3800, 3750, 3900, 4100, 4050, 4300, 4500, 4700,
}

func DefaultMonthlyRevenue(now time.Time) []models.MonthlyRevenue {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(monthsOfHistory - 1), 0)
	result := make([]models.MonthlyRevenue, monthsOfHistory)
	for i, amount := range defaultMonthlyAmounts {
		m := start.AddDate(0, i, 0)
		result[i] = models.MonthlyRevenue{
			Month:  m.Format("2006-01"),
			Label:  m.Format("Jan 2006"),
			Amount: amount,
			Count:  int(amount / 425),
		}
		if i > 0 {
			prev := defaultMonthlyAmounts[i-1]
			result[i].Trend = (amount - prev) / prev * 100
		}
	}
	return result
}

var defaultForecastAmounts = [forecastMonths]float64{4850, 5000, 5150, 5300, 5450, 5600}

func DefaultForecast(now time.Time) []models.RevenueForecast {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	result := make([]models.RevenueForecast, forecastMonths)
	for i, amount := range defaultForecastAmounts {
		m := start.AddDate(0, i+1, 0)
		spread := 0.05 * float64(i+1)
		result[i] = models.RevenueForecast{
			Month:      m.Format("2006-01"),
			Label:      m.Format("Jan 2006"),
			Predicted:  amount,
			LowerBound: amount * (1 - spread),
			UpperBound: amount * (1 + spread),
			Confidence: max(30, 90-12*float64(i)),
		}
	}
	return result
}

func DefaultTrends() models.TrendAnalysis {
	return models.TrendAnalysis{
		MonthlyGrowthRate: 3.5,
		YearlyGrowthRate:  51.1,
		RevenueStability:  0.85,
		TopGrowthCategories: []models.CategoryTrend{
			{Category: "tuition", Amount: 32000, Change: 15},
			{Category: "meals", Amount: 6600, Change: 12},
			{Category: "activities", Amount: 4500, Change: 8},
		},
		TopDeclineCategories: []models.CategoryTrend{
			{Category: "materials", Amount: 2150, Change: -6},
		},
	}
}

// DefaultDashboard bundles the default datasets with Fallback set.
func DefaultDashboard(now time.Time) models.Dashboard {
	return models.Dashboard{
		Summary:     DefaultSummary(),
		Methods:     DefaultMethodDistribution(),
		Categories:  DefaultCategoryDistribution(),
		Statuses:    DefaultStatusDistribution(),
		Monthly:     DefaultMonthlyRevenue(now),
		Forecast:    DefaultForecast(now),
		Trends:      DefaultTrends(),
		Fallback:    true,
		GeneratedAt: now,
	}
}
