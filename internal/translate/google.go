package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/metrics"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"
)

type translationClient interface {
	Translate(ctx context.Context, texts []string, target string) ([]string, error)
}

type googleTranslateAPIClient struct {
	service *translatev2.Service
}

func (c *googleTranslateAPIClient) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	response, err := c.service.Translations.List(texts, target).Format("text").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(response.Translations))
	for _, translation := range response.Translations {
		if translation == nil {
			out = append(out, "")
			continue
		}
		out = append(out, html.UnescapeString(translation.TranslatedText))
	}
	return out, nil
}

type GoogleConfig struct {
	APIKey          string
	CredentialsFile string
}

func GoogleConfigFromEnv() GoogleConfig {
	return GoogleConfig{
		APIKey:          strings.TrimSpace(os.Getenv("GOOGLE_TRANSLATE_API_KEY")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}
}

func (c GoogleConfig) Configured() bool {
	return c.APIKey != "" || c.CredentialsFile != ""
}

// GoogleTranslator uses the Cloud Translation v2 API.
type GoogleTranslator struct {
	newClient func(ctx context.Context) (translationClient, error)
}

func NewGoogleTranslator(cfg GoogleConfig) (*GoogleTranslator, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: set GOOGLE_TRANSLATE_API_KEY or GOOGLE_APPLICATION_CREDENTIALS", ErrUnavailable)
	}
	return &GoogleTranslator{
		newClient: func(ctx context.Context) (translationClient, error) {
			return newGoogleTranslateClient(ctx, cfg)
		},
	}, nil
}

func newGoogleTranslateClient(ctx context.Context, cfg GoogleConfig) (translationClient, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	service, err := translatev2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &googleTranslateAPIClient{service: service}, nil
}

func (g *GoogleTranslator) Name() string {
	return "google_translate"
}

func (g *GoogleTranslator) Translate(ctx context.Context, text string, targetCode string) (string, error) {
	if err := validateInput(text, targetCode); err != nil {
		return "", err
	}

	started := time.Now()
	result, err := g.translate(ctx, text, targetCode)

	status, code := "success", "none"
	if err != nil {
		status, code = "error", errorCode(err)
	}
	metrics.RecordProviderCall(g.Name(), "translate", status, code, time.Since(started))
	return result, err
}

func (g *GoogleTranslator) translate(ctx context.Context, text string, targetCode string) (string, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return "", err
	}

	results, err := client.Translate(ctx, []string{text}, targetCode)
	if err != nil {
		return "", mapGoogleTranslateError(err)
	}
	if len(results) == 0 || strings.TrimSpace(results[0]) == "" {
		return "", ErrEmptyResult
	}
	return results[0], nil
}

func mapGoogleTranslateError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 400:
			return fmt.Errorf("translate: rejected request: %w", err)
		case apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 429 || apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}

// NewChain builds the translation chain: Google Translate backed by the
// completion provider when Google credentials exist, the provider alone
// otherwise.
func NewChain(cfg GoogleConfig, provider llm.Provider) Translator {
	fallback := NewLLMTranslator(provider)
	google, err := NewGoogleTranslator(cfg)
	if err != nil {
		return &FallbackTranslator{Fallback: fallback}
	}
	return &FallbackTranslator{Primary: google, Fallback: fallback}
}
