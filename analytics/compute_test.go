package analytics

import (
	"math"
	"testing"
	"time"

	"kinder-payment-svc/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func paidAt(amount float64, method models.PaymentMethod, category string, at time.Time) models.PaymentRecord {
	return models.PaymentRecord{
		Amount:    amount,
		Method:    method,
		Category:  category,
		Status:    models.PaymentStatusPaid,
		PaidAt:    &at,
		CreatedAt: at,
	}
}

func record(amount float64, status models.PaymentStatus) models.PaymentRecord {
	return models.PaymentRecord{Amount: amount, Status: status, CreatedAt: testNow}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeSummary(t *testing.T) {
	payments := []models.PaymentRecord{
		paidAt(100, models.PaymentMethodCash, "tuition", testNow),
		paidAt(300, models.PaymentMethodCash, "tuition", testNow.AddDate(0, -2, 0)),
		record(50, models.PaymentStatusPending),
		record(70, models.PaymentStatusOverdue),
	}

	s := ComputeSummary(payments, testNow)
	if s.TotalRevenue != 400 {
		t.Errorf("Expected total revenue 400, got %v", s.TotalRevenue)
	}
	if s.MonthlyRevenue != 100 {
		t.Errorf("Expected monthly revenue 100, got %v", s.MonthlyRevenue)
	}
	if s.PendingPayments != 1 || s.PendingAmount != 50 {
		t.Errorf("Unexpected pending figures %d/%v", s.PendingPayments, s.PendingAmount)
	}
	if s.OverduePayments != 1 || s.OverdueAmount != 70 {
		t.Errorf("Unexpected overdue figures %d/%v", s.OverduePayments, s.OverdueAmount)
	}
	if s.AveragePayment != 200 {
		t.Errorf("Expected average 200, got %v", s.AveragePayment)
	}
	if s.PaymentSuccessRate != 50 {
		t.Errorf("Expected success rate 50, got %v", s.PaymentSuccessRate)
	}
}

func TestComputeSummary_Empty(t *testing.T) {
	s := ComputeSummary(nil, testNow)
	if s.PaymentSuccessRate != 0 || s.AveragePayment != 0 {
		t.Errorf("Expected zero summary, got %+v", s)
	}
}

func TestComputeDistributions(t *testing.T) {
	payments := []models.PaymentRecord{
		paidAt(300, models.PaymentMethodCreditCard, "tuition", testNow),
		paidAt(100, models.PaymentMethodCash, "meals", testNow),
		record(600, models.PaymentStatusFailed),
		record(20, models.PaymentStatusPending),
	}

	methods := ComputeMethodDistribution(payments)
	if len(methods) != 2 {
		t.Fatalf("Expected 2 methods, got %d", len(methods))
	}
	if methods[0].Method != models.PaymentMethodCreditCard || methods[0].Percentage != 75 {
		t.Errorf("Unexpected top method %+v", methods[0])
	}

	categories := ComputeCategoryDistribution(payments)
	if categories[1].Category != "meals" || categories[1].Percentage != 25 {
		t.Errorf("Unexpected category %+v", categories[1])
	}

	statuses := ComputeStatusDistribution(payments)
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		switch s.Status {
		case models.PaymentStatusPaid:
			if s.Count != 2 || s.Percentage != 50 {
				t.Errorf("Unexpected paid share %+v", s)
			}
		case models.PaymentStatusFailed, models.PaymentStatusPending:
			if s.Percentage != 25 {
				t.Errorf("Unexpected %s share %+v", s.Status, s)
			}
		}
	}
}

func TestComputeMonthlyRevenue(t *testing.T) {
	payments := []models.PaymentRecord{
		paidAt(100, models.PaymentMethodCash, "tuition", time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)),
		paidAt(100, models.PaymentMethodCash, "tuition", time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)),
		paidAt(150, models.PaymentMethodCash, "tuition", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		paidAt(999, models.PaymentMethodCash, "tuition", time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)),
		{Amount: 500, Status: models.PaymentStatusPending, CreatedAt: testNow},
	}

	monthly := ComputeMonthlyRevenue(payments, testNow)
	if len(monthly) != 12 {
		t.Fatalf("Expected 12 buckets, got %d", len(monthly))
	}
	if monthly[0].Month != "2024-07" || monthly[11].Month != "2025-06" {
		t.Errorf("Unexpected window %s..%s", monthly[0].Month, monthly[11].Month)
	}
	if monthly[0].Trend != 0 {
		t.Errorf("Expected first trend 0, got %v", monthly[0].Trend)
	}
	if monthly[9].Trend != 0 {
		t.Errorf("Expected trend 0 after an empty month, got %v", monthly[9].Trend)
	}
	if monthly[10].Trend != 0 {
		t.Errorf("Expected trend 0 for equal months, got %v", monthly[10].Trend)
	}
	if monthly[11].Amount != 150 || monthly[11].Trend != 50 {
		t.Errorf("Unexpected last bucket %+v", monthly[11])
	}
}

func scenarioSeries() []models.MonthlyRevenue {
	amounts := []float64{0, 0, 0, 0, 0, 0, 1000, 1100, 1210, 1331, 1464, 1610}
	series := make([]models.MonthlyRevenue, len(amounts))
	for i, a := range amounts {
		series[i] = models.MonthlyRevenue{Amount: a}
	}
	return series
}

func TestComputeForecast_FixedJitter(t *testing.T) {
	series := scenarioSeries()
	growth := averageGrowth(trimLeadingEmpty(series))

	forecast := ComputeForecast(series, testNow, FixedJitter(1))
	if len(forecast) != 6 {
		t.Fatalf("Expected 6 months, got %d", len(forecast))
	}
	if !almostEqual(forecast[0].Predicted, 1610*(1+growth)) {
		t.Errorf("Expected %v, got %v", 1610*(1+growth), forecast[0].Predicted)
	}
	if math.Abs(forecast[0].Predicted-1610*1.1) > 1 {
		t.Errorf("Expected about %v, got %v", 1610*1.1, forecast[0].Predicted)
	}
	if forecast[0].Month != "2025-07" {
		t.Errorf("Expected first forecast month 2025-07, got %s", forecast[0].Month)
	}

	wantConfidence := []float64{90, 78, 66, 54, 42, 30}
	for i, f := range forecast {
		if f.Confidence != wantConfidence[i] {
			t.Errorf("Month %d: expected confidence %v, got %v", i+1, wantConfidence[i], f.Confidence)
		}
		spread := 0.05 * float64(i+1)
		if !almostEqual(f.LowerBound, f.Predicted*(1-spread)) || !almostEqual(f.UpperBound, f.Predicted*(1+spread)) {
			t.Errorf("Month %d: unexpected bounds %+v", i+1, f)
		}
		if i > 0 && f.Predicted <= forecast[i-1].Predicted {
			t.Errorf("Month %d: expected compounding growth", i+1)
		}
	}
}

func TestComputeForecast_RandomJitterWithinBounds(t *testing.T) {
	series := scenarioSeries()
	growth := averageGrowth(trimLeadingEmpty(series))
	low, high := 1610*(1+0.8*growth), 1610*(1+1.2*growth)

	for seed := uint64(0); seed < 50; seed++ {
		forecast := ComputeForecast(series, testNow, NewRandomJitter(seed))
		got := forecast[0].Predicted
		if got < low || got > high {
			t.Errorf("Seed %d: expected %v in [%v, %v]", seed, got, low, high)
		}
		if got < 1610*1.08-1 || got > 1610*1.12+1 {
			t.Errorf("Seed %d: expected %v near [1610*1.08, 1610*1.12]", seed, got)
		}
	}
}

func TestComputeForecast_ShortHistoryUsesDefault(t *testing.T) {
	series := make([]models.MonthlyRevenue, 12)
	series[10].Amount = 500
	series[11].Amount = 600

	forecast := ComputeForecast(series, testNow, FixedJitter(1))
	want := DefaultForecast(testNow)
	if forecast[0].Predicted != want[0].Predicted {
		t.Errorf("Expected default forecast, got %+v", forecast[0])
	}
}

func TestComputeTrends(t *testing.T) {
	flat := make([]models.MonthlyRevenue, 12)
	for i := range flat {
		flat[i].Amount = 1000
	}
	categories := []models.CategoryDistribution{
		{Category: "a", Amount: 10}, {Category: "b", Amount: 50}, {Category: "c", Amount: 40},
		{Category: "d", Amount: 30}, {Category: "e", Amount: 20},
	}

	trends := ComputeTrends(flat, categories, FixedJitter(1))
	if trends.MonthlyGrowthRate != 0 || trends.YearlyGrowthRate != 0 {
		t.Errorf("Expected zero growth, got %+v", trends)
	}
	if trends.RevenueStability != 1 {
		t.Errorf("Expected stability 1, got %v", trends.RevenueStability)
	}
	if len(trends.TopGrowthCategories) != 3 || trends.TopGrowthCategories[0].Category != "b" {
		t.Errorf("Unexpected growth categories %+v", trends.TopGrowthCategories)
	}
	if len(trends.TopDeclineCategories) != 2 || trends.TopDeclineCategories[0].Category != "a" {
		t.Errorf("Unexpected decline categories %+v", trends.TopDeclineCategories)
	}
	for _, c := range trends.TopDeclineCategories {
		if c.Change >= 0 {
			t.Errorf("Expected negative change for %s", c.Category)
		}
	}
}

func TestComputeTrends_GrowthAndStability(t *testing.T) {
	trends := ComputeTrends(scenarioSeries(), nil, FixedJitter(1))
	g := trends.MonthlyGrowthRate / 100
	if math.Abs(g-0.1) > 0.001 {
		t.Errorf("Expected monthly growth near 10%%, got %v", trends.MonthlyGrowthRate)
	}
	if !almostEqual(trends.YearlyGrowthRate, (math.Pow(1+g, 12)-1)*100) {
		t.Errorf("Unexpected yearly growth %v", trends.YearlyGrowthRate)
	}
	if trends.RevenueStability < 0 || trends.RevenueStability >= 1 {
		t.Errorf("Expected stability in [0, 1), got %v", trends.RevenueStability)
	}
}

func TestJitterRange(t *testing.T) {
	j := NewRandomJitter(42)
	for i := 0; i < 1000; i++ {
		f := j.Factor()
		if f < 0.8 || f > 1.2 {
			t.Fatalf("Factor %v out of range", f)
		}
	}
	if FixedJitter(5).Factor() != 1.2 || FixedJitter(0).Factor() != 0.8 {
		t.Error("Expected FixedJitter to clamp")
	}
}
