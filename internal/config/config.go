// Package config loads server settings from an optional YAML file named by
// SLIDEBUDDY_CONFIG, then applies environment overrides and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
	"github.com/alanmaizon/slidebuddy/internal/translate"
)

const (
	defaultPort               = "8080"
	defaultRateLimitPerMinute = 60
)

var defaultAllowOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost",
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Undo     UndoConfig     `yaml:"undo"`
	Document DocumentConfig `yaml:"document"`
	LLM      LLMConfig      `yaml:"llm"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Port               string   `yaml:"port"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	AllowOrigins       []string `yaml:"allow_origins"`
}

// EngineConfig controls batching and pacing of bulk passes.
type EngineConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	Pacer      string        `yaml:"pacer"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	Rate       float64       `yaml:"rate"`
	Burst      int           `yaml:"burst"`
}

type UndoConfig struct {
	Depth     int    `yaml:"depth"`
	Store     string `yaml:"store"`
	StorePath string `yaml:"store_path"`
}

type DocumentConfig struct {
	Driver   string `yaml:"driver"`
	DeckPath string `yaml:"deck_path"`
}

// LLMConfig names the server-side provider. Keys are only read from the
// environment.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

func (c *Config) defaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Server.RateLimitPerMinute < 0 {
		c.Server.RateLimitPerMinute = defaultRateLimitPerMinute
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = append([]string(nil), defaultAllowOrigins...)
	}
	if c.Engine.BatchSize <= 0 {
		c.Engine.BatchSize = engine.DefaultBatchSize
	}
	if c.Engine.Pacer == "" {
		c.Engine.Pacer = "fixed"
	}
	if c.Engine.BatchDelay <= 0 && c.Engine.Pacer == "fixed" {
		c.Engine.BatchDelay = engine.DefaultBatchDelay
	}
	if c.Undo.Depth <= 0 {
		c.Undo.Depth = session.DefaultUndoDepth
	}
	if c.Undo.Store == "" {
		c.Undo.Store = "memory"
	}
	if c.Undo.Store == "sqlite" && c.Undo.StorePath == "" {
		c.Undo.StorePath = "slidebuddy.db"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "mock"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "slidebuddy"
	}
}

// Load reads SLIDEBUDDY_CONFIG when set, then the environment.
func Load() (*Config, error) {
	cfg := &Config{Server: ServerConfig{RateLimitPerMinute: -1}}
	if path := strings.TrimSpace(os.Getenv("SLIDEBUDDY_CONFIG")); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

// LoadFile reads a YAML config file. Absent keys keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{Server: ServerConfig{RateLimitPerMinute: -1}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Engine.Pacer, "ENGINE_PACER")
	setString(&c.Undo.Store, "UNDO_STORE")
	setString(&c.Undo.StorePath, "UNDO_STORE_PATH")
	setString(&c.Document.Driver, "DOCUMENT_DRIVER")
	setString(&c.Document.DeckPath, "DECK_PATH")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)

	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); raw != "" {
		c.Server.AllowOrigins = splitList(raw)
	}

	var err error
	if c.Server.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", c.Server.RateLimitPerMinute); err != nil {
		return err
	}
	if c.Engine.BatchSize, err = envInt("ENGINE_BATCH_SIZE", c.Engine.BatchSize); err != nil {
		return err
	}
	if c.Engine.Burst, err = envInt("ENGINE_BURST", c.Engine.Burst); err != nil {
		return err
	}
	if c.Undo.Depth, err = envInt("UNDO_DEPTH", c.Undo.Depth); err != nil {
		return err
	}
	if raw := strings.TrimSpace(os.Getenv("ENGINE_BATCH_DELAY")); raw != "" {
		if c.Engine.BatchDelay, err = time.ParseDuration(raw); err != nil {
			return fmt.Errorf("ENGINE_BATCH_DELAY: %w", err)
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ENGINE_RATE")); raw != "" {
		if c.Engine.Rate, err = strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("ENGINE_RATE: %w", err)
		}
	}
	if raw := strings.TrimSpace(os.Getenv("TRACING_ENABLED")); raw != "" {
		if c.Tracing.Enabled, err = strconv.ParseBool(raw); err != nil {
			return fmt.Errorf("TRACING_ENABLED: %w", err)
		}
	}
	return nil
}

// EngineOptions builds engine options, including the configured pacer.
func (c *Config) EngineOptions() (engine.Options, error) {
	pacer, err := engine.NewPacer(engine.PacerConfig{
		Kind:  c.Engine.Pacer,
		Delay: c.Engine.BatchDelay,
		Rate:  c.Engine.Rate,
		Burst: c.Engine.Burst,
	})
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{BatchSize: c.Engine.BatchSize, Pacer: pacer}, nil
}

func (c *Config) StoreConfig() session.StoreConfig {
	return session.StoreConfig{Driver: c.Undo.Store, Path: c.Undo.StorePath}
}

// OpenerConfig pairs the document settings with Google credentials from
// the environment.
func (c *Config) OpenerConfig() slides.OpenerConfig {
	return slides.OpenerConfig{
		Driver:   c.Document.Driver,
		DeckPath: c.Document.DeckPath,
		Google:   slides.GoogleSlidesConfigFromEnv(),
	}
}

// ProviderConfig reads provider keys from the environment and applies the
// configured provider and model on top.
func (c *Config) ProviderConfig() llm.Config {
	base := llm.ConfigFromEnv()
	if c.LLM.Provider != "" && c.LLM.Provider != base.Provider {
		withKeys := withProvider(c.LLM.Provider)
		withKeys.Timeout, withKeys.MaxRetries, withKeys.Breaker = base.Timeout, base.MaxRetries, base.Breaker
		base = withKeys
	}
	if c.LLM.Model != "" {
		base.Model = c.LLM.Model
	}
	return base
}

func (c *Config) TranslationConfig() translate.GoogleConfig {
	return translate.GoogleConfigFromEnv()
}

func withProvider(provider string) llm.Config {
	cfg := llm.Config{Provider: provider, Breaker: llm.DefaultBreakerSettings()}
	switch provider {
	case "openai":
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case "gemini":
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if cfg.APIKey == "" {
			cfg.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
	}
	return cfg
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
