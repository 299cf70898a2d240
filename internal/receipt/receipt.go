package receipt

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Receipt represents a receipt, invoice or proof of payment with its extracted metadata
type Receipt struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	MerchantName        string            `json:"merchant_name"`
	Description         string            `json:"description,omitempty"`
	PurchaseDate        time.Time         `json:"purchase_date"`
	CaptureDate         time.Time         `json:"capture_date"`
	Amount              decimal.Decimal   `json:"amount"`
	CurrencyCode        string            `json:"currency_code"`
	TaxAmount           *decimal.Decimal  `json:"tax_amount,omitempty"`
	TaxRate             *decimal.Decimal  `json:"tax_rate,omitempty"`
	Category            Category          `json:"category"`
	Keywords            []string          `json:"keywords"`
	Tags                []string          `json:"tags"`
	Metadata            map[string]string `json:"metadata"`
	LocationDescription string            `json:"location_description,omitempty"`
	Location            *Coordinate       `json:"location,omitempty"`
	Attachment          Attachment        `json:"attachment"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Attachment points at the stored source document and its optional thumbnail
type Attachment struct {
	Path          string `json:"path"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	MimeType      string `json:"mime_type"`
}

// Coordinate is a geographic position
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Clone returns a deep copy of the receipt
func (r Receipt) Clone() Receipt {
	c := r
	if r.TaxAmount != nil {
		v := *r.TaxAmount
		c.TaxAmount = &v
	}
	if r.TaxRate != nil {
		v := *r.TaxRate
		c.TaxRate = &v
	}
	if r.Location != nil {
		v := *r.Location
		c.Location = &v
	}
	if r.Keywords != nil {
		c.Keywords = append([]string(nil), r.Keywords...)
	}
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// GroupByCategory groups receipts by their category
func GroupByCategory(receipts []Receipt) map[Category][]Receipt {
	groups := make(map[Category][]Receipt)
	for _, r := range receipts {
		groups[r.Category] = append(groups[r.Category], r)
	}
	return groups
}

// CategoryGroup is the receipts of one category, newest purchase first
type CategoryGroup struct {
	Category Category  `json:"category"`
	Title    string    `json:"title"`
	Receipts []Receipt `json:"receipts"`
}

// MatchesSearch reports whether search occurs in the title, merchant name or
// a keyword, ignoring case. A blank search matches every receipt.
func (r Receipt) MatchesSearch(search string) bool {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	if strings.Contains(fold.String(r.Title), needle) || strings.Contains(fold.String(r.MerchantName), needle) {
		return true
	}
	for _, k := range r.Keywords {
		if strings.Contains(fold.String(k), needle) {
			return true
		}
	}
	return false
}

// Group returns the receipts matching search grouped by category in display
// order. Empty categories are left out.
func Group(receipts []Receipt, search string) []CategoryGroup {
	matching := make([]Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r.MatchesSearch(search) {
			matching = append(matching, r)
		}
	}

	groups := GroupByCategory(matching)
	out := make([]CategoryGroup, 0, len(groups))
	for _, c := range categories {
		members, ok := groups[c]
		if !ok {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].PurchaseDate.After(members[j].PurchaseDate)
		})
		out = append(out, CategoryGroup{Category: c, Title: c.Title(), Receipts: members})
	}
	return out
}

func cloneAll(receipts []Receipt) []Receipt {
	out := make([]Receipt, len(receipts))
	for i, r := range receipts {
		out[i] = r.Clone()
	}
	return out
}
