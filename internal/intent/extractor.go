package intent

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
)

var tracer = otel.Tracer("slidebuddy-intent")

// Extractor turns an utterance into a directive, asking the model first and
// falling back to the heuristic cascade.
type Extractor struct {
	provider   llm.Provider
	strategies []Strategy
}

// New builds an extractor. A nil provider means heuristics only.
func New(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider, strategies: Cascade}
}

// Extract never fails: model errors and unparseable replies degrade to the
// cascade, which always ends in generic help.
func (e *Extractor) Extract(ctx context.Context, utterance string, summary domain.ContextSummary) domain.Directive {
	ctx, span := tracer.Start(ctx, "intent.extract")
	defer span.End()

	requestID := middleware.RequestIDFromContext(ctx)
	directive := e.extract(ctx, requestID, utterance, summary)

	span.SetAttributes(
		attribute.String("intent.operation", string(directive.Operation)),
		attribute.String("intent.source", string(directive.Source)),
		attribute.Bool("intent.needs_clarification", directive.NeedsClarification),
	)
	log.Printf(
		"request_id=%s component=intent operation=%s source=%s scope=%s needs_clarification=%t",
		requestID,
		directive.Operation,
		directive.Source,
		directive.Scope,
		directive.NeedsClarification,
	)
	return directive
}

func (e *Extractor) extract(ctx context.Context, requestID string, utterance string, summary domain.ContextSummary) domain.Directive {
	if strings.TrimSpace(utterance) == "" {
		return domain.NewUnclear(domain.GenericHelp).WithSource(domain.SourceFallback)
	}
	if e.provider == nil {
		return e.Heuristic(utterance)
	}

	reply, err := e.provider.Complete(ctx, BuildPrompt(utterance, summary), PromptTokenBudget)
	if err != nil {
		log.Printf(
			"request_id=%s component=intent event=model_unavailable error_category=%s",
			requestID,
			llm.Classify(err),
		)
		return e.Heuristic(utterance)
	}

	directive, parseErr := ParseReply(reply)
	if parseErr == nil {
		if directive.Scope == "" || directive.Scope == domain.ScopeDocument {
			directive = directive.WithScope(ScopeHint(utterance))
		}
		return directive.WithSource(domain.SourceLLM)
	}

	fallback := e.Heuristic(utterance)
	if errors.Is(parseErr, ErrNoTag) && !fallback.Mutates() && fallback.Operation != domain.OpUndo {
		if question := strings.TrimSpace(reply); question != "" {
			return domain.NewUnclear(question).WithSource(domain.SourceLLM)
		}
	}
	return fallback
}

// Heuristic runs the cascade alone.
func (e *Extractor) Heuristic(utterance string) domain.Directive {
	for _, strategy := range e.strategies {
		directive, ok := strategy.Apply(utterance)
		if !ok {
			continue
		}
		source := domain.SourceHeuristic
		if strategy.Name == "generic_help" {
			source = domain.SourceFallback
		}
		return directive.WithScope(ScopeHint(utterance)).WithSource(source)
	}
	return domain.NewUnclear(domain.GenericHelp).WithSource(domain.SourceFallback)
}
