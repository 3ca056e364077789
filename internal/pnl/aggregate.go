// Package pnl folds classified ledger entries into monthly profit-and-loss buckets.
package pnl

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

// MonthKeyLayout renders month labels such as "Jan 2025".
const MonthKeyLayout = "Jan 2006"

// uncategorized labels breakdown rows without any category.
const uncategorized = "Uncategorized"

// MonthlyBucket carries the P&L totals for one calendar month.
type MonthlyBucket struct {
	MonthKey           string          `json:"month_key"`
	Year               int             `json:"year"`
	Month              time.Month      `json:"month"`
	ProjectIncome      decimal.Decimal `json:"project_income"`
	DirectProjectCosts decimal.Decimal `json:"direct_project_costs"`
	OperatingExpenses  decimal.Decimal `json:"operating_expenses"`
	NetProjectProfit   decimal.Decimal `json:"net_project_profit"`
}

// CategoryAmount is one slice of the cost breakdown.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthKey formats the label for the month containing t.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// ParseMonthKey parses a label produced by MonthKey.
func ParseMonthKey(key string) (time.Time, error) {
	return time.Parse(MonthKeyLayout, key)
}

type monthID struct {
	year  int
	month time.Month
}

// Aggregate groups entries by calendar month and sums each bucket. The result
// is ordered by the underlying month, never by label.
func Aggregate(classified []ledger.ClassifiedEntry) []MonthlyBucket {
	groups := make(map[monthID]*MonthlyBucket)
	for _, c := range classified {
		id := monthID{year: c.Date.Year(), month: c.Date.Month()}
		bucket, ok := groups[id]
		if !ok {
			bucket = &MonthlyBucket{
				MonthKey:           MonthKey(c.Date),
				Year:               id.year,
				Month:              id.month,
				ProjectIncome:      decimal.Zero,
				DirectProjectCosts: decimal.Zero,
				OperatingExpenses:  decimal.Zero,
			}
			groups[id] = bucket
		}
		switch c.Bucket {
		case ledger.BucketProjectIncome:
			bucket.ProjectIncome = bucket.ProjectIncome.Add(c.Amount)
		case ledger.BucketDirectProjectCost:
			bucket.DirectProjectCosts = bucket.DirectProjectCosts.Add(c.Amount)
		case ledger.BucketOperatingExpense:
			bucket.OperatingExpenses = bucket.OperatingExpenses.Add(c.Amount)
		}
	}

	buckets := make([]MonthlyBucket, 0, len(groups))
	for _, b := range groups {
		b.NetProjectProfit = b.ProjectIncome.Sub(b.DirectProjectCosts).Sub(b.OperatingExpenses)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Month < buckets[j].Month
	})
	return buckets
}

// Breakdown sums absolute cost amounts keyed by sub-category when present,
// otherwise by category. Names that differ only in case or surrounding space
// share a row labelled with the first spelling seen. Rows are ordered by
// amount descending.
func Breakdown(classified []ledger.ClassifiedEntry) []CategoryAmount {
	totals := make(map[string]*CategoryAmount)
	for _, c := range classified {
		if c.Bucket != ledger.BucketDirectProjectCost && c.Bucket != ledger.BucketOperatingExpense {
			continue
		}
		label := strings.TrimSpace(c.SubCategory)
		if label == "" {
			label = strings.TrimSpace(c.Category)
		}
		if label == "" {
			label = uncategorized
		}
		key := ledger.CategoryKey(label)
		row, ok := totals[key]
		if !ok {
			row = &CategoryAmount{Category: label, Amount: decimal.Zero}
			totals[key] = row
		}
		row.Amount = row.Amount.Add(c.Amount.Abs())
	}

	rows := make([]CategoryAmount, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if cmp := rows[i].Amount.Cmp(rows[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}
