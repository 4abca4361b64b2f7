package agents

import (
	"context"
	"fmt"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/slides"
)

// execution is the outcome of the executor step.
type execution struct {
	result         domain.OperationResult
	configFailures int
}

// ExecuteStep builds the operation's plan and runs it once over scope.
func ExecuteStep(ctx context.Context, eng *engine.Engine, tool Tool, kit Toolkit, doc slides.Document, d domain.Directive, scope domain.ScopeDescriptor) (execution, error) {
	plan, err := tool.Build(kit, d)
	if err != nil {
		return execution{}, err
	}
	plan.Scope = scope
	plan.Label = d.Label()

	var out execution
	if transform := plan.Transform; transform != nil {
		plan.Transform = func(ctx context.Context, text string) (string, error) {
			next, err := transform(ctx, text)
			if llm.IsConfig(err) {
				out.configFailures++
			}
			return next, err
		}
	}

	out.result, err = eng.Run(ctx, doc, plan)
	if err != nil {
		return out, fmt.Errorf("%s: %w", tool.Name, err)
	}
	return out, nil
}
