package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	openAIURL          = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"
	openAITemperature  = 0.3
	errorBodyLimit     = 4096
)

// OpenAIProvider talks to the chat completions endpoint over plain HTTP.
type OpenAIProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	policy   retryPolicy
}

func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required", ErrConfig)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openAIDefaultModel
	}

	return &OpenAIProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: openAIURL,
		client:   http.DefaultClient,
		policy:   cfg.policy(),
	}, nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

func (o *OpenAIProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return observeProviderOperation(ctx, o.Name(), "complete", func(ctx context.Context) (string, error) {
		body, err := o.requestBody(prompt, maxTokens)
		if err != nil {
			return "", err
		}
		return o.policy.run(ctx, o.Name(), func(ctx context.Context) (string, error) {
			return o.send(ctx, body)
		})
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIProvider) requestBody(prompt string, maxTokens int) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: openAITemperature,
		MaxTokens:   maxTokens,
	})
}

// send performs one attempt. HTTP failures come back as providerHTTPError so
// the retry policy and Classify can read the status.
func (o *OpenAIProvider) send(ctx context.Context, body []byte) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+o.apiKey)

	response, err := o.client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return "", &providerHTTPError{
			provider:   o.Name(),
			statusCode: response.StatusCode,
			message:    strings.TrimSpace(string(detail)),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrMalformedResponse)
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: openai returned empty content", ErrMalformedResponse)
	}
	return text, nil
}
