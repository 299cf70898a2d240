package scanning

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed values returned when no extraction provider is available
const (
	FallbackTitle    = "Boleta"
	FallbackMerchant = "Comercio"
	FallbackSummary  = "Compra registrada manualmente"
	FallbackCurrency = "CLP"
	FallbackCategory = "other"
)

var (
	// FallbackAmount is the placeholder total
	FallbackAmount = decimal.NewFromInt(19990)
	// FallbackTaxAmount is the placeholder tax (19% VAT included in the total)
	FallbackTaxAmount = decimal.NewFromInt(3181)
	// FallbackTaxRate is the placeholder tax rate
	FallbackTaxRate = decimal.RequireFromString("0.19")
)

// Fallback is a Scanner that never calls out and always returns the same
// placeholder extraction. It keeps ingestion usable without credentials.
type Fallback struct{}

// ScanReceipt returns the placeholder extraction. A non-empty hint becomes the summary.
func (Fallback) ScanReceipt(_ context.Context, _ []byte, _ string, hint string) (*Extraction, error) {
	summary := FallbackSummary
	if h := strings.TrimSpace(hint); h != "" {
		summary = h
	}
	tax := FallbackTaxAmount
	rate := FallbackTaxRate
	return &Extraction{
		Title:        FallbackTitle,
		MerchantName: FallbackMerchant,
		Summary:      summary,
		TotalAmount:  FallbackAmount,
		CurrencyCode: FallbackCurrency,
		TaxAmount:    &tax,
		TaxRate:      &rate,
		Category:     FallbackCategory,
		Keywords:     []string{"manual", "sin-ia"},
		Tags:         []string{"fallback"},
		Metadata:     map[string]string{},
	}, nil
}

// Close is a no-op
func (Fallback) Close() error {
	return nil
}
