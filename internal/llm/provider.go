package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Provider is the completion endpoint: one stateless prompt in, one text out.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config selects and configures a provider. APIKey is supplied per session;
// nothing in this package reads a credential from global state at call time.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Breaker    BreakerSettings
}

// ConfigFromEnv reads LLM_PROVIDER and the provider's key/model variables.
func ConfigFromEnv() Config {
	policy := policyFromEnv()
	cfg := Config{
		Provider:   strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))),
		Timeout:    policy.timeout,
		MaxRetries: policy.maxRetries,
		Breaker:    DefaultBreakerSettings(),
	}

	switch cfg.Provider {
	case "openai":
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	case "gemini":
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if cfg.APIKey == "" {
			cfg.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		cfg.Model = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	case "":
		cfg.Provider = "mock"
	}
	return cfg
}

// WithAPIKey returns a copy carrying a session credential, keeping the
// configured key when the session supplies none.
func (c Config) WithAPIKey(key string) Config {
	if key = strings.TrimSpace(key); key != "" {
		c.APIKey = key
	}
	return c
}

func (c Config) policy() retryPolicy {
	return newRetryPolicy(c.Timeout, c.MaxRetries)
}

// NewProvider builds the provider named by cfg. A remote provider without a
// key yields ErrConfig.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(cfg)
	case "gemini":
		return NewGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfig, cfg.Provider)
	}
}

// Factory hands out providers per credential and keeps one circuit breaker
// per credential so a failing key trips once, not per request.
type Factory struct {
	base Config

	mu        sync.Mutex
	providers map[string]Provider
}

func NewFactory(base Config) *Factory {
	return &Factory{
		base:      base,
		providers: make(map[string]Provider),
	}
}

func (f *Factory) Base() Config {
	return f.base
}

// For returns the provider for a session credential. Construction failures
// are folded into an UnconfiguredProvider so callers always get a Provider
// whose calls fail with ErrConfig.
func (f *Factory) For(credential string) Provider {
	cfg := f.base.WithAPIKey(credential)
	key := cfg.Provider + ":" + fingerprint(cfg.APIKey)

	f.mu.Lock()
	defer f.mu.Unlock()

	if provider, ok := f.providers[key]; ok {
		return provider
	}

	var provider Provider
	inner, err := NewProvider(cfg)
	if err != nil {
		provider = NewUnconfiguredProvider(cfg.Provider, err)
	} else {
		provider = NewBreakerProvider(inner, cfg.Breaker)
	}
	f.providers[key] = provider
	return provider
}

func fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}

// UnconfiguredProvider stands in for a provider that could not be built.
type UnconfiguredProvider struct {
	name  string
	cause error
}

func NewUnconfiguredProvider(name string, cause error) *UnconfiguredProvider {
	if name == "" {
		name = "none"
	}
	return &UnconfiguredProvider{name: name, cause: cause}
}

func (u *UnconfiguredProvider) Name() string {
	return u.name
}

func (u *UnconfiguredProvider) Complete(ctx context.Context, _ string, _ int) (string, error) {
	return observeProviderOperation(ctx, u.name, "complete", func(context.Context) (string, error) {
		return "", u.cause
	})
}
