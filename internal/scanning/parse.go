package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateFormats are tried in order when reading a purchase date from the model
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

// rawExtraction mirrors the JSON the model is asked to produce
type rawExtraction struct {
	Title               string            `json:"title"`
	MerchantName        string            `json:"merchantName"`
	Summary             string            `json:"summary"`
	PurchaseDate        string            `json:"purchaseDate"`
	TotalAmount         decimal.Decimal   `json:"totalAmount"`
	CurrencyCode        string            `json:"currencyCode"`
	TaxAmount           *decimal.Decimal  `json:"taxAmount"`
	TaxRate             *decimal.Decimal  `json:"taxRate"`
	Category            string            `json:"category"`
	Keywords            []string          `json:"keywords"`
	Tags                []string          `json:"tags"`
	Metadata            map[string]string `json:"metadata"`
	LocationDescription string            `json:"locationDescription"`
	Location            *Coordinate       `json:"location"`
}

// cleanModelJSON strips markdown fences and any prose around the JSON object
func cleanModelJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// parseExtractionJSON parses the model reply into an Extraction.
// Failures wrap ErrGatewayDecode.
func parseExtractionJSON(text string) (*Extraction, error) {
	text, err := cleanModelJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayDecode, err)
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrGatewayDecode, err)
	}

	data := &Extraction{
		Title:               strings.TrimSpace(raw.Title),
		MerchantName:        strings.TrimSpace(raw.MerchantName),
		Summary:             strings.TrimSpace(raw.Summary),
		PurchaseDate:        parseDate(raw.PurchaseDate, time.Local),
		TotalAmount:         raw.TotalAmount.Abs(),
		CurrencyCode:        strings.ToUpper(strings.TrimSpace(raw.CurrencyCode)),
		TaxAmount:           raw.TaxAmount,
		TaxRate:             raw.TaxRate,
		Category:            strings.ToLower(strings.TrimSpace(raw.Category)),
		Keywords:            nonEmpty(raw.Keywords),
		Tags:                nonEmpty(raw.Tags),
		Metadata:            raw.Metadata,
		LocationDescription: strings.TrimSpace(raw.LocationDescription),
		Location:            raw.Location,
	}

	if data.CurrencyCode == "" {
		data.CurrencyCode = FallbackCurrency
	}
	if data.Title == "" {
		data.Title = data.MerchantName
	}
	if data.Title == "" {
		data.Title = FallbackTitle
	}
	if data.Metadata == nil {
		data.Metadata = map[string]string{}
	}

	return data, nil
}

// parseDate reads a date in any supported format. Dates without a zone are
// calendar days in loc. Unparseable or empty input yields nil.
func parseDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, format := range dateFormats {
		if d, err := time.ParseInLocation(format, s, loc); err == nil {
			return &d
		}
	}
	return nil
}

// nonEmpty trims entries and drops blank ones
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
