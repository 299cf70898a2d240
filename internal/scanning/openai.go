package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI implements the Scanner interface using the OpenAI chat completions API
type OpenAI struct {
	client openai.Client
	apiKey string
	model  string
}

// NewOpenAI creates a new OpenAI Scanner instance. An empty baseURL uses the
// public API. A zero timeout leaves requests unbounded.
func NewOpenAI(baseURL, apiKey, modelName string, timeout time.Duration) *OpenAI {
	if modelName == "" {
		modelName = "gpt-4.1-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		apiKey: apiKey,
		model:  modelName,
	}
}

// ScanReceipt analyzes a receipt and extracts structured data
func (o *OpenAI) ScanReceipt(ctx context.Context, imageData []byte, contentType, hint string) (*Extraction, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is not configured", ErrUnauthenticated)
	}

	finalImageData, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(0.1),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt(hint)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(finalImageData),
				}),
			}),
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: no choices in openai response", ErrGatewayBadResponse)
	}

	return parseExtractionJSON(resp.Choices[0].Message.Content)
}

// classifyOpenAIError maps SDK errors onto the gateway sentinels
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: calling openai API: %v", ErrGatewayUnavailable, err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: openai API status %d", ErrUnauthenticated, apiErr.StatusCode)
	default:
		return fmt.Errorf("%w: openai API error (status %d): %v", ErrGatewayBadResponse, apiErr.StatusCode, err)
	}
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}
