package admin

import (
	"sort"
	"strings"

	"kinder-payment-svc/models"
)

const (
	SortParent = "parent"
	SortAmount = "amount"
	SortDate   = "date"
	SortStatus = "status"

	defaultPageSize = 10
	maxPageSize     = 100
)

// ListQuery is applied in memory to the full payment list.
type ListQuery struct {
	Search   string               `form:"search"`
	Status   models.PaymentStatus `form:"status"`
	Category string               `form:"category"`
	SortBy   string               `form:"sort"`
	Desc     bool                 `form:"desc"`
	Page     int                  `form:"page"`
	PageSize int                  `form:"page_size"`
}

// PaymentRow is a record joined with display names.
type PaymentRow struct {
	models.PaymentRecord
	ParentName string `json:"parent_name"`
	ChildName  string `json:"child_name,omitempty"`
}

type Page struct {
	Items      []PaymentRow `json:"items"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

func (q ListQuery) matches(row PaymentRow) bool {
	if q.Status != "" && row.Status != q.Status {
		return false
	}
	if q.Category != "" && !strings.EqualFold(row.Category, q.Category) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{row.ParentName, row.ChildName, row.Description, row.TransactionID} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// less orders rows by the query's sort key. Unknown keys sort by date.
func (q ListQuery) less(a, b PaymentRow) bool {
	switch q.SortBy {
	case SortParent:
		if a.ParentName != b.ParentName {
			return strings.ToLower(a.ParentName) < strings.ToLower(b.ParentName)
		}
		return strings.ToLower(a.ChildName) < strings.ToLower(b.ChildName)
	case SortAmount:
		return a.Amount < b.Amount
	case SortStatus:
		return a.Status < b.Status
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// apply filters, sorts and paginates rows.
func (q ListQuery) apply(rows []PaymentRow) Page {
	filtered := make([]PaymentRow, 0, len(rows))
	for _, r := range rows {
		if q.matches(r) {
			filtered = append(filtered, r)
		}
	}

	desc := q.Desc
	if q.SortBy == "" {
		desc = true
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if desc {
			return q.less(filtered[j], filtered[i])
		}
		return q.less(filtered[i], filtered[j])
	})

	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)
	page := max(q.Page, 1)

	total := len(filtered)
	pages := (total + size - 1) / size
	start := total
	if page <= pages {
		start = (page - 1) * size
	}
	end := min(start+size, total)

	return Page{
		Items:      filtered[start:end],
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
	}
}
