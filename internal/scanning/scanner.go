package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnauthenticated means the provider has no usable credential
	ErrUnauthenticated = errors.New("gateway unauthenticated")

	// ErrGatewayUnavailable means the provider could not be reached
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrGatewayBadResponse means the provider answered with an error or an empty reply
	ErrGatewayBadResponse = errors.New("gateway bad response")

	// ErrGatewayDecode means the provider reply could not be decoded into an Extraction
	ErrGatewayDecode = errors.New("gateway decode error")

	// ErrUnreadableDocument means the document could not be decoded before it was sent
	ErrUnreadableDocument = errors.New("unreadable document")
)

// Extraction contains the structured information extracted from a document
type Extraction struct {
	Title               string            `json:"title"`
	MerchantName        string            `json:"merchantName"`
	Summary             string            `json:"summary"`
	PurchaseDate        *time.Time        `json:"purchaseDate,omitempty"`
	TotalAmount         decimal.Decimal   `json:"totalAmount"`
	CurrencyCode        string            `json:"currencyCode"`
	TaxAmount           *decimal.Decimal  `json:"taxAmount,omitempty"`
	TaxRate             *decimal.Decimal  `json:"taxRate,omitempty"`
	Category            string            `json:"category"`
	Keywords            []string          `json:"keywords"`
	Tags                []string          `json:"tags"`
	Metadata            map[string]string `json:"metadata"`
	LocationDescription string            `json:"locationDescription,omitempty"`
	Location            *Coordinate       `json:"location,omitempty"`
}

// Coordinate is a latitude/longitude pair reported by the provider
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Scanner defines the interface for document extraction
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts structured data.
	// hint is optional free text supplied by the user.
	ScanReceipt(ctx context.Context, imageData []byte, contentType, hint string) (*Extraction, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Config selects and configures a Scanner provider
type Config struct {
	Provider    string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string
	Timeout     time.Duration
}

// New builds the configured Scanner. Providers that need a credential return
// the deterministic Fallback when none is configured, and are wrapped so an
// authentication failure also yields the fallback extraction.
func New(cfg Config) (Scanner, error) {
	switch cfg.Provider {
	case "", "gemini":
		if cfg.GeminiKey == "" {
			slog.Warn("No Gemini API key configured, using fallback extraction")
			return Fallback{}, nil
		}
		g, err := NewGemini(cfg.GeminiKey, cfg.GeminiModel, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return WithFallback(g), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			slog.Warn("No OpenAI API key configured, using fallback extraction")
			return Fallback{}, nil
		}
		return WithFallback(NewOpenAI(cfg.OpenAIURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.Timeout)), nil
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	case "fallback":
		return Fallback{}, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: valid types are gemini, ollama, openai, fallback", cfg.Provider)
	}
}

// fallbackScanner substitutes the fallback extraction for authentication failures
type fallbackScanner struct {
	Scanner
}

// WithFallback wraps s so that ErrUnauthenticated results in the Fallback extraction.
// Every other failure is returned unchanged.
func WithFallback(s Scanner) Scanner {
	return &fallbackScanner{Scanner: s}
}

// ScanReceipt delegates to the wrapped scanner
func (f *fallbackScanner) ScanReceipt(ctx context.Context, imageData []byte, contentType, hint string) (*Extraction, error) {
	data, err := f.Scanner.ScanReceipt(ctx, imageData, contentType, hint)
	if errors.Is(err, ErrUnauthenticated) {
		slog.Warn("Extraction provider rejected credentials, using fallback extraction", "error", err)
		return Fallback{}.ScanReceipt(ctx, imageData, contentType, hint)
	}
	return data, err
}
