package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ahorro/internal/receipt"
)

// Kind identifies what a Filter matches against
type Kind string

const (
	KindKeyword     Kind = "keyword"
	KindCategory    Kind = "category"
	KindMerchant    Kind = "merchant"
	KindAmountRange Kind = "amountRange"
	KindDateRange   Kind = "dateRange"
)

// Filter is one matching predicate with a kind-specific string payload
type Filter struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Keyword matches receipts with a keyword containing value
func Keyword(value string) Filter {
	return Filter{Kind: KindKeyword, Value: value}
}

// Category matches receipts in category c
func Category(c receipt.Category) Filter {
	return Filter{Kind: KindCategory, Value: string(c)}
}

// Merchant matches receipts whose merchant name contains value
func Merchant(value string) Filter {
	return Filter{Kind: KindMerchant, Value: value}
}

// AmountRange matches amounts within [low, high]
func AmountRange(low, high decimal.Decimal) Filter {
	return Filter{Kind: KindAmountRange, Value: low.String() + "-" + high.String()}
}

// DateRange matches purchase dates within [start, end]
func DateRange(start, end time.Time) Filter {
	return Filter{Kind: KindDateRange, Value: start.Format(time.RFC3339Nano) + "|" + end.Format(time.RFC3339Nano)}
}

// Matches reports whether r satisfies the filter. Range filters with a
// malformed payload match everything.
func (f Filter) Matches(r receipt.Receipt) bool {
	switch f.Kind {
	case KindKeyword:
		value := strings.ToLower(f.Value)
		for _, k := range r.Keywords {
			if strings.Contains(strings.ToLower(k), value) {
				return true
			}
		}
		return false
	case KindCategory:
		return string(r.Category) == f.Value
	case KindMerchant:
		return strings.Contains(strings.ToLower(r.MerchantName), strings.ToLower(f.Value))
	case KindAmountRange:
		low, high, ok := parseAmountRange(f.Value)
		if !ok {
			return true
		}
		return r.Amount.GreaterThanOrEqual(low) && r.Amount.LessThanOrEqual(high)
	case KindDateRange:
		start, end, ok := parseDateRange(f.Value)
		if !ok {
			return true
		}
		return !r.PurchaseDate.Before(start) && !r.PurchaseDate.After(end)
	default:
		return true
	}
}

// parseAmountRange reads "<low>-<high>". Empty and unparseable parts are
// skipped; exactly two amounts must remain.
func parseAmountRange(value string) (decimal.Decimal, decimal.Decimal, bool) {
	var amounts []decimal.Decimal
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == '-' }) {
		if d, err := decimal.NewFromString(strings.TrimSpace(part)); err == nil {
			amounts = append(amounts, d)
		}
	}
	if len(amounts) != 2 {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return amounts[0], amounts[1], true
}

// parseDateRange reads "<start>|<end>" in RFC 3339 with the same rules as parseAmountRange
func parseDateRange(value string) (time.Time, time.Time, bool) {
	var instants []time.Time
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == '|' }) {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(part)); err == nil {
			instants = append(instants, t)
		}
	}
	if len(instants) != 2 {
		return time.Time{}, time.Time{}, false
	}
	return instants[0], instants[1], true
}
