package models

import "time"

type Summary struct {
	TotalRevenue       float64 `json:"total_revenue"`
	MonthlyRevenue     float64 `json:"monthly_revenue"`
	PendingPayments    int     `json:"pending_payments"`
	PendingAmount      float64 `json:"pending_amount"`
	OverduePayments    int     `json:"overdue_payments"`
	OverdueAmount      float64 `json:"overdue_amount"`
	AveragePayment     float64 `json:"average_payment"`
	PaymentSuccessRate float64 `json:"payment_success_rate"`
}

type MethodDistribution struct {
	Method     PaymentMethod `json:"method"`
	Count      int           `json:"count"`
	Amount     float64       `json:"amount"`
	Percentage float64       `json:"percentage"`
}

type CategoryDistribution struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type StatusDistribution struct {
	Status     PaymentStatus `json:"status"`
	Count      int           `json:"count"`
	Amount     float64       `json:"amount"`
	Percentage float64       `json:"percentage"`
}

// MonthlyRevenue is one calendar-month bucket. Trend is the percentage change
// against the previous bucket.
type MonthlyRevenue struct {
	Month  string  `json:"month"` // YYYY-MM
	Label  string  `json:"label"` // Jan 2026
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
	Trend  float64 `json:"trend"`
}

type RevenueForecast struct {
	Month      string  `json:"month"`
	Label      string  `json:"label"`
	Predicted  float64 `json:"predicted"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Confidence float64 `json:"confidence"`
}

type CategoryTrend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Change   float64 `json:"change"`
}

type TrendAnalysis struct {
	MonthlyGrowthRate    float64         `json:"monthly_growth_rate"`
	YearlyGrowthRate     float64         `json:"yearly_growth_rate"`
	RevenueStability     float64         `json:"revenue_stability"`
	TopGrowthCategories  []CategoryTrend `json:"top_growth_categories"`
	TopDeclineCategories []CategoryTrend `json:"top_decline_categories"`
}

// Dashboard bundles every analytics card. Fallback is set when the payment
// records could not be read and default datasets were substituted.
type Dashboard struct {
	Summary     Summary                `json:"summary"`
	Methods     []MethodDistribution   `json:"methods"`
	Categories  []CategoryDistribution `json:"categories"`
	Statuses    []StatusDistribution   `json:"statuses"`
	Monthly     []MonthlyRevenue       `json:"monthly"`
	Forecast    []RevenueForecast      `json:"forecast"`
	Trends      TrendAnalysis          `json:"trends"`
	Fallback    bool                   `json:"fallback"`
	GeneratedAt time.Time              `json:"generated_at"`
}
