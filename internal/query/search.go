package query

import (
	"sort"
	"strings"

	"github.com/zombor/ahorro/internal/receipt"
)

// Search returns the receipts matching q, newest purchase first. Receipts
// with the same purchase date keep their collection order.
//
// A receipt is included when every prompt token occurs in its text OR it
// satisfies every filter. Either condition alone is enough.
func Search(receipts []receipt.Receipt, q Query) []receipt.Receipt {
	tokens := Tokenize(q.Prompt)

	out := make([]receipt.Receipt, 0)
	for _, r := range receipts {
		if matchesTokens(r, tokens) || matchesFilters(r, q.Filters) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PurchaseDate.After(out[j].PurchaseDate)
	})
	return out
}

// haystack is the searchable text of a receipt
func haystack(r receipt.Receipt) string {
	parts := make([]string, 0, len(r.Keywords)+len(r.Tags)+3)
	parts = append(parts, r.Keywords...)
	parts = append(parts, r.Tags...)
	parts = append(parts, r.Title, r.MerchantName, r.Description)
	return lower(strings.Join(parts, " "))
}

func matchesTokens(r receipt.Receipt, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	text := haystack(r)
	for _, t := range tokens {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

func matchesFilters(r receipt.Receipt, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(r) {
			return false
		}
	}
	return true
}
