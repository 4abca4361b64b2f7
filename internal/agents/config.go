package agents

import (
	"github.com/alanmaizon/slidebuddy/internal/config"
	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/llm"
)

// FromConfig wires an orchestrator from loaded settings.
func FromConfig(cfg *config.Config) (*Orchestrator, error) {
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	return NewOrchestrator(Options{
		Providers:   llm.NewFactory(cfg.ProviderConfig()),
		Translation: cfg.TranslationConfig(),
		Engine:      engine.New(engineOpts),
	}), nil
}
