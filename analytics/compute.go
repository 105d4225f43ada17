package analytics

import (
	"math"
	"sort"
	"time"

	"kinder-payment-svc/models"
)

const (
	monthsOfHistory = 12
	forecastMonths  = 6
	minHistory      = 3
	topCategories   = 3
)

// revenueDate is the instant a paid record counts towards monthly revenue.
func revenueDate(p models.PaymentRecord) time.Time {
	if p.PaidAt != nil {
		return *p.PaidAt
	}
	return p.CreatedAt
}

func categoryOf(p models.PaymentRecord) string {
	if p.Category == "" {
		return models.DefaultCategory
	}
	return p.Category
}

func ComputeSummary(payments []models.PaymentRecord, now time.Time) models.Summary {
	var s models.Summary
	paid := 0
	for _, p := range payments {
		switch p.Status {
		case models.PaymentStatusPaid:
			paid++
			s.TotalRevenue += p.Amount
			d := revenueDate(p).In(now.Location())
			if d.Year() == now.Year() && d.Month() == now.Month() {
				s.MonthlyRevenue += p.Amount
			}
		case models.PaymentStatusPending:
			s.PendingPayments++
			s.PendingAmount += p.Amount
		case models.PaymentStatusOverdue:
			s.OverduePayments++
			s.OverdueAmount += p.Amount
		}
	}
	if paid > 0 {
		s.AveragePayment = s.TotalRevenue / float64(paid)
	}
	if len(payments) > 0 {
		s.PaymentSuccessRate = 100 * float64(paid) / float64(len(payments))
	}
	return s
}

// ComputeMethodDistribution groups paid records by method. Percentage is the
// share of paid revenue.
func ComputeMethodDistribution(payments []models.PaymentRecord) []models.MethodDistribution {
	groups := map[models.PaymentMethod]*models.MethodDistribution{}
	total := 0.0
	for _, p := range payments {
		if p.Status != models.PaymentStatusPaid {
			continue
		}
		g, ok := groups[p.Method]
		if !ok {
			g = &models.MethodDistribution{Method: p.Method}
			groups[p.Method] = g
		}
		g.Count++
		g.Amount += p.Amount
		total += p.Amount
	}

	result := make([]models.MethodDistribution, 0, len(groups))
	for _, g := range groups {
		g.Percentage = percent(g.Amount, total)
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Amount == result[j].Amount {
			return result[i].Method < result[j].Method
		}
		return result[i].Amount > result[j].Amount
	})
	return result
}

// ComputeCategoryDistribution groups paid records by category. Percentage is the
// share of paid revenue.
func ComputeCategoryDistribution(payments []models.PaymentRecord) []models.CategoryDistribution {
	groups := map[string]*models.CategoryDistribution{}
	total := 0.0
	for _, p := range payments {
		if p.Status != models.PaymentStatusPaid {
			continue
		}
		c := categoryOf(p)
		g, ok := groups[c]
		if !ok {
			g = &models.CategoryDistribution{Category: c}
			groups[c] = g
		}
		g.Count++
		g.Amount += p.Amount
		total += p.Amount
	}

	result := make([]models.CategoryDistribution, 0, len(groups))
	for _, g := range groups {
		g.Percentage = percent(g.Amount, total)
		result = append(result, *g)
	}
	sortCategories(result)
	return result
}

// ComputeStatusDistribution groups every record by status. Percentage is the
// share of records.
func ComputeStatusDistribution(payments []models.PaymentRecord) []models.StatusDistribution {
	groups := map[models.PaymentStatus]*models.StatusDistribution{}
	for _, p := range payments {
		g, ok := groups[p.Status]
		if !ok {
			g = &models.StatusDistribution{Status: p.Status}
			groups[p.Status] = g
		}
		g.Count++
		g.Amount += p.Amount
	}

	var result []models.StatusDistribution
	for _, status := range models.AllStatuses {
		g, ok := groups[status]
		if !ok {
			continue
		}
		g.Percentage = percent(float64(g.Count), float64(len(payments)))
		result = append(result, *g)
	}
	return result
}

// ComputeMonthlyRevenue sums paid amounts for the 12 calendar months ending with
// now's month, oldest first.
func ComputeMonthlyRevenue(payments []models.PaymentRecord, now time.Time) []models.MonthlyRevenue {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(monthsOfHistory - 1), 0)

	buckets := make([]models.MonthlyRevenue, monthsOfHistory)
	index := make(map[string]int, monthsOfHistory)
	for i := range buckets {
		m := start.AddDate(0, i, 0)
		buckets[i] = models.MonthlyRevenue{Month: m.Format("2006-01"), Label: m.Format("Jan 2006")}
		index[buckets[i].Month] = i
	}

	for _, p := range payments {
		if p.Status != models.PaymentStatusPaid {
			continue
		}
		i, ok := index[revenueDate(p).In(now.Location()).Format("2006-01")]
		if !ok {
			continue
		}
		buckets[i].Amount += p.Amount
		buckets[i].Count++
	}

	for i := 1; i < len(buckets); i++ {
		if prev := buckets[i-1].Amount; prev > 0 {
			buckets[i].Trend = (buckets[i].Amount - prev) / prev * 100
		}
	}
	return buckets
}

// ComputeForecast projects 6 months ahead from the monthly series by compounding
// the mean month-over-month growth rate, each month scaled by a jitter factor.
// The bounds widen by 5% per month and confidence drops from 90 to a floor of 30.
// With fewer than 3 months of history the default forecast is returned.
func ComputeForecast(monthly []models.MonthlyRevenue, now time.Time, jitter Jitter) []models.RevenueForecast {
	history := trimLeadingEmpty(monthly)
	if len(history) < minHistory {
		return DefaultForecast(now)
	}

	growth := averageGrowth(history)
	value := history[len(history)-1].Amount
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	result := make([]models.RevenueForecast, forecastMonths)
	for m := 1; m <= forecastMonths; m++ {
		value *= 1 + growth*jitter.Factor()
		month := start.AddDate(0, m, 0)
		spread := 0.05 * float64(m)
		result[m-1] = models.RevenueForecast{
			Month:      month.Format("2006-01"),
			Label:      month.Format("Jan 2006"),
			Predicted:  value,
			LowerBound: value * (1 - spread),
			UpperBound: value * (1 + spread),
			Confidence: math.Max(30, 90-12*float64(m-1)),
		}
	}
	return result
}

// ComputeTrends derives growth and stability figures from the monthly series.
// Growth rates are percentages and stability is in [0, 1]. Category changes are
// a heuristic scaled by jitter, not a time-series comparison.
func ComputeTrends(monthly []models.MonthlyRevenue, categories []models.CategoryDistribution, jitter Jitter) models.TrendAnalysis {
	growth := averageGrowth(trimLeadingEmpty(monthly))
	t := models.TrendAnalysis{
		MonthlyGrowthRate: growth * 100,
		YearlyGrowthRate:  (math.Pow(1+growth, 12) - 1) * 100,
		RevenueStability:  stability(monthly),
	}

	ranked := make([]models.CategoryDistribution, len(categories))
	copy(ranked, categories)
	sortCategories(ranked)

	n := min(topCategories, len(ranked))
	for _, c := range ranked[:n] {
		t.TopGrowthCategories = append(t.TopGrowthCategories, models.CategoryTrend{
			Category: c.Category,
			Amount:   c.Amount,
			Change:   15 * jitter.Factor(),
		})
	}
	rest := ranked[n:]
	for i := len(rest) - 1; i >= 0 && len(t.TopDeclineCategories) < topCategories; i-- {
		t.TopDeclineCategories = append(t.TopDeclineCategories, models.CategoryTrend{
			Category: rest[i].Category,
			Amount:   rest[i].Amount,
			Change:   -10 * jitter.Factor(),
		})
	}
	return t
}

func trimLeadingEmpty(monthly []models.MonthlyRevenue) []models.MonthlyRevenue {
	for i, m := range monthly {
		if m.Amount > 0 {
			return monthly[i:]
		}
	}
	return nil
}

// averageGrowth is the mean of (curr-prev)/prev over consecutive pairs with prev > 0.
func averageGrowth(series []models.MonthlyRevenue) float64 {
	sum, n := 0.0, 0
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Amount
		if prev <= 0 {
			continue
		}
		sum += (series[i].Amount - prev) / prev
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// stability is 1 - min(1, cv/2) where cv is the coefficient of variation of the
// monthly amounts. A series without revenue has stability 0.
func stability(monthly []models.MonthlyRevenue) float64 {
	if len(monthly) == 0 {
		return 0
	}
	mean := 0.0
	for _, m := range monthly {
		mean += m.Amount
	}
	mean /= float64(len(monthly))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, m := range monthly {
		variance += (m.Amount - mean) * (m.Amount - mean)
	}
	cv := math.Sqrt(variance/float64(len(monthly))) / mean
	return 1 - math.Min(1, cv/2)
}

func percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

func sortCategories(c []models.CategoryDistribution) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Amount == c[j].Amount {
			return c[i].Category < c[j].Category
		}
		return c[i].Amount > c[j].Amount
	})
}
