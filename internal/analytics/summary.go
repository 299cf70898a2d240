// Package analytics computes monthly spend summaries over the receipt collection.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ahorro/internal/receipt"
)

// CategoryTotal is the spend in one category
type CategoryTotal struct {
	Category receipt.Category `json:"category"`
	Title    string           `json:"title"`
	Total    decimal.Decimal  `json:"total"`
	Count    int              `json:"count"`
}

// DailySpend is the spend on one calendar day
type DailySpend struct {
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// Summary aggregates the receipts purchased in one month
type Summary struct {
	Month      time.Time       `json:"month"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	TaxPaid    decimal.Decimal `json:"tax_paid"`
	Categories []CategoryTotal `json:"categories"`
	Daily      []DailySpend    `json:"daily"`
	Keywords   map[string]int  `json:"keywords"`
}

// Recompute summarizes the receipts purchased in the calendar month of at,
// using at's location for month and day boundaries. It returns nil when no
// receipt falls in that month.
func Recompute(receipts []receipt.Receipt, at time.Time) *Summary {
	loc := at.Location()
	month := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, loc)

	var inMonth []receipt.Receipt
	for _, r := range receipts {
		p := r.PurchaseDate.In(loc)
		if p.Year() == at.Year() && p.Month() == at.Month() {
			inMonth = append(inMonth, r)
		}
	}
	if len(inMonth) == 0 {
		return nil
	}

	s := &Summary{
		Month:      month,
		TotalSpent: decimal.Zero,
		TaxPaid:    decimal.Zero,
		Categories: []CategoryTotal{},
		Daily:      []DailySpend{},
		Keywords:   map[string]int{},
	}

	categoryIndex := map[receipt.Category]int{}
	dayIndex := map[time.Time]int{}

	for _, r := range inMonth {
		s.TotalSpent = s.TotalSpent.Add(r.Amount)
		if r.TaxAmount != nil {
			s.TaxPaid = s.TaxPaid.Add(*r.TaxAmount)
		}

		i, ok := categoryIndex[r.Category]
		if !ok {
			i = len(s.Categories)
			categoryIndex[r.Category] = i
			s.Categories = append(s.Categories, CategoryTotal{Category: r.Category, Title: r.Category.Title(), Total: decimal.Zero})
		}
		s.Categories[i].Total = s.Categories[i].Total.Add(r.Amount)
		s.Categories[i].Count++

		p := r.PurchaseDate.In(loc)
		day := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, loc)
		j, ok := dayIndex[day]
		if !ok {
			j = len(s.Daily)
			dayIndex[day] = j
			s.Daily = append(s.Daily, DailySpend{Day: day, Total: decimal.Zero})
		}
		s.Daily[j].Total = s.Daily[j].Total.Add(r.Amount)

		for _, k := range r.Keywords {
			s.Keywords[k]++
		}
	}

	sort.SliceStable(s.Categories, func(i, j int) bool {
		return s.Categories[i].Total.GreaterThan(s.Categories[j].Total)
	})
	sort.Slice(s.Daily, func(i, j int) bool {
		return s.Daily[i].Day.Before(s.Daily[j].Day)
	})

	return s
}
