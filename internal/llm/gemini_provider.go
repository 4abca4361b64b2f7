package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash"

type GeminiProvider struct {
	model  string
	policy retryPolicy
	models *genai.Models
}

func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY (or GOOGLE_API_KEY) is required", ErrConfig)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = geminiDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", ErrConfig, err)
	}

	return &GeminiProvider{
		model:  model,
		policy: cfg.policy(),
		models: client.Models,
	}, nil
}

func (g *GeminiProvider) Name() string {
	return "gemini"
}

func (g *GeminiProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	generation := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		generation.MaxOutputTokens = int32(maxTokens)
	}

	return observeProviderOperation(ctx, g.Name(), "complete", func(ctx context.Context) (string, error) {
		return g.policy.run(ctx, g.Name(), func(ctx context.Context) (string, error) {
			response, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), generation)
			if err != nil {
				return "", geminiError(err)
			}
			text := strings.TrimSpace(response.Text())
			if text == "" {
				return "", fmt.Errorf("%w: gemini returned no text", ErrMalformedResponse)
			}
			return text, nil
		})
	})
}

// geminiError lifts the SDK's APIError into providerHTTPError so status
// codes classify the same way as the HTTP providers.
func geminiError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return err
	}
	if apiErr.Code <= 0 {
		return err
	}
	return &providerHTTPError{provider: "gemini", statusCode: apiErr.Code, message: apiErr.Message}
}
