package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/session"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SLIDEBUDDY_CONFIG", "PORT", "ENGINE_PACER", "UNDO_STORE", "UNDO_STORE_PATH",
		"DOCUMENT_DRIVER", "DECK_PATH", "LLM_PROVIDER", "CORS_ALLOW_ORIGINS",
		"RATE_LIMIT_PER_MINUTE", "ENGINE_BATCH_SIZE", "ENGINE_BURST", "UNDO_DEPTH",
		"ENGINE_BATCH_DELAY", "ENGINE_RATE", "TRACING_ENABLED",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_MODEL", "GEMINI_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, defaultRateLimitPerMinute, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, defaultAllowOrigins, cfg.Server.AllowOrigins)
	assert.Equal(t, engine.DefaultBatchSize, cfg.Engine.BatchSize)
	assert.Equal(t, "fixed", cfg.Engine.Pacer)
	assert.Equal(t, engine.DefaultBatchDelay, cfg.Engine.BatchDelay)
	assert.Equal(t, session.DefaultUndoDepth, cfg.Undo.Depth)
	assert.Equal(t, "memory", cfg.Undo.Store)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "slidebuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  rate_limit_per_minute: 0
engine:
  batch_size: 4
  pacer: token_bucket
  rate: 2.5
  burst: 3
undo:
  depth: 5
  store: sqlite
document:
  driver: memory
  deck_path: deck.yaml
llm:
  provider: gemini
  model: gemini-2.0-flash
tracing:
  enabled: true
`), 0o600))
	t.Setenv("SLIDEBUDDY_CONFIG", path)
	t.Setenv("UNDO_DEPTH", "7")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 0, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 4, cfg.Engine.BatchSize)
	assert.Equal(t, "token_bucket", cfg.Engine.Pacer)
	assert.Equal(t, 7, cfg.Undo.Depth)
	assert.Equal(t, "sqlite", cfg.Undo.Store)
	assert.Equal(t, "slidebuddy.db", cfg.Undo.StorePath)
	assert.True(t, cfg.Tracing.Enabled)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, 4, opts.BatchSize)
	assert.IsType(t, &engine.TokenBucket{}, opts.Pacer)

	store := cfg.StoreConfig()
	assert.Equal(t, "sqlite", store.Driver)

	opener := cfg.OpenerConfig()
	assert.Equal(t, "deck.yaml", opener.DeckPath)

	provider := cfg.ProviderConfig()
	assert.Equal(t, "gemini", provider.Provider)
	assert.Equal(t, "gemini-key", provider.APIKey)
	assert.Equal(t, "gemini-2.0-flash", provider.Model)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("ENGINE_BATCH_DELAY", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_BATCH_DELAY")

	t.Setenv("ENGINE_BATCH_DELAY", "250ms")
	t.Setenv("ENGINE_BATCH_SIZE", "many")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_BATCH_SIZE")
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_BATCH_DELAY", "250ms")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.BatchDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.ProviderConfig().APIKey)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
