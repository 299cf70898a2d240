package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini Scanner instance. A zero timeout leaves the request unbounded.
func NewGemini(apiKey string, modelName string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.1)

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// ScanReceipt analyzes a receipt and extracts structured data
func (g *Gemini) ScanReceipt(ctx context.Context, imageData []byte, contentType, hint string) (*Extraction, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	finalImageData, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	parts := []genai.Part{
		genai.ImageData("png", finalImageData),
		genai.Text(userPrompt(hint)),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no response from gemini", ErrGatewayBadResponse)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return parseExtractionJSON(responseText.String())
}

// classifyGeminiError maps client errors onto the gateway failure kinds
func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", ErrGatewayBadResponse, err)
	}

	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: generating content: %v", ErrGatewayUnavailable, err)
	}

	code := apiErr.GRPCStatus().Code()
	switch {
	case apiErr.HTTPCode() == http.StatusUnauthorized,
		apiErr.HTTPCode() == http.StatusForbidden,
		code == codes.Unauthenticated,
		code == codes.PermissionDenied,
		apiErr.Reason() == "API_KEY_INVALID":
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	case code == codes.Unavailable, code == codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrGatewayBadResponse, err)
	}
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
