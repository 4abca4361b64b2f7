package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
	"github.com/alanmaizon/slidebuddy/internal/slides"
)

var tracer = otel.Tracer("slidebuddy-engine")

const DefaultBatchSize = 10

// Plan describes one bulk pass. A plan rewrites text through Transform or,
// when Transform is nil, rewrites style alone through Restyle. Match, Filter
// and Validate are optional gates applied in that order.
type Plan struct {
	Operation domain.Operation
	Label     string
	Scope     domain.ScopeDescriptor
	Transform TransformFunc
	Restyle   RestyleFunc
	Match     func(text string) bool
	Filter    func(text string) (bool, string)
	Validate  func(before string, after string) error
}

type Options struct {
	BatchSize int
	Pacer     Pacer
}

type Engine struct {
	batchSize int
	pacer     Pacer
}

func New(opts Options) *Engine {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	pacer := opts.Pacer
	if pacer == nil {
		pacer = FixedDelay(DefaultBatchDelay)
	}
	return &Engine{batchSize: batchSize, pacer: pacer}
}

var ErrNoTransform = errors.New("plan has neither transform nor restyle")

// Run applies plan to every element in scope. It returns an error only when
// the elements cannot be enumerated; per-element failures are reported in
// the result.
func (e *Engine) Run(ctx context.Context, doc slides.Document, plan Plan) (domain.OperationResult, error) {
	started := time.Now()
	requestID := middleware.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "engine.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("engine.operation", string(plan.Operation)),
		attribute.String("engine.scope", string(plan.Scope.Kind)),
		attribute.String("engine.document", doc.Name()),
	)

	result := domain.OperationResult{
		Operation:        plan.Operation,
		ScopeDescription: plan.Scope.Describe(),
	}

	if plan.Transform == nil && plan.Restyle == nil {
		span.SetStatus(codes.Error, ErrNoTransform.Error())
		return result, ErrNoTransform
	}

	elements, err := doc.ListElements(ctx, plan.Scope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enumeration failed")
		log.Printf(
			"request_id=%s component=engine operation=%s event=enumerate_failed error=%q",
			requestID,
			plan.Operation,
			err.Error(),
		)
		return result, fmt.Errorf("enumerate %s: %w", plan.Scope.Describe(), err)
	}
	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].Locator.Less(elements[j].Locator)
	})

	result.TotalConsidered = len(elements)
	result.Outcomes = make([]domain.ElementOutcome, len(elements))

	pending := make([]int, 0, len(elements))
	for i, element := range elements {
		result.Outcomes[i] = domain.ElementOutcome{
			Locator: element.Locator,
			Before:  domain.Preview(element.Text),
			Status:  domain.StatusSkipped,
		}
		if reason, ok := gate(plan, element.Text); !ok {
			result.Outcomes[i].Reason = reason
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += e.batchSize {
		if start > 0 {
			if err := e.pacer.Wait(ctx); err != nil {
				markCancelled(&result, pending[start:])
				break
			}
		}
		if ctx.Err() != nil {
			markCancelled(&result, pending[start:])
			break
		}

		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		for offset, index := range pending[start:end] {
			if ctx.Err() != nil {
				markCancelled(&result, pending[start+offset:])
				break
			}
			result.Outcomes[index] = e.apply(ctx, doc, plan, elements[index], result.Outcomes[index])
			if result.Outcomes[index].Status == domain.StatusSuccess {
				result.TotalMutated++
			}
		}
		if result.Cancelled {
			break
		}
	}

	result.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int("engine.considered", result.TotalConsidered),
		attribute.Int("engine.mutated", result.TotalMutated),
		attribute.Int("engine.failed", result.Failed()),
		attribute.Bool("engine.cancelled", result.Cancelled),
	)
	log.Printf(
		"request_id=%s component=engine operation=%s scope=%s considered=%d mutated=%d failed=%d cancelled=%t duration_ms=%d",
		requestID,
		plan.Operation,
		plan.Scope.Kind,
		result.TotalConsidered,
		result.TotalMutated,
		result.Failed(),
		result.Cancelled,
		result.Duration.Milliseconds(),
	)
	return result, nil
}

func gate(plan Plan, text string) (string, bool) {
	if text == "" {
		return "empty", false
	}
	if plan.Filter != nil {
		if ok, reason := plan.Filter(text); !ok {
			return reason, false
		}
	}
	if plan.Match != nil && !plan.Match(text) {
		return "no match", false
	}
	return "", true
}

func markCancelled(result *domain.OperationResult, remaining []int) {
	result.Cancelled = true
	for _, index := range remaining {
		result.Outcomes[index].Status = domain.StatusSkipped
		result.Outcomes[index].Reason = "cancelled"
	}
}

func (e *Engine) apply(ctx context.Context, doc slides.Document, plan Plan, element domain.TextElement, outcome domain.ElementOutcome) domain.ElementOutcome {
	style, err := doc.GetStyle(ctx, element.Locator)
	if err != nil {
		return failed(outcome, err)
	}
	if plan.Transform == nil {
		return restyle(ctx, doc, plan, element, style, outcome)
	}

	after, err := plan.Transform(ctx, element.Text)
	if err != nil {
		return failed(outcome, err)
	}
	if after == element.Text {
		outcome.Reason = "unchanged"
		return outcome
	}
	if plan.Validate != nil {
		if err := plan.Validate(element.Text, after); err != nil {
			outcome.Reason = err.Error()
			return outcome
		}
	}

	if err := doc.SetText(ctx, element.Locator, after); err != nil {
		return failed(outcome, err)
	}

	outcome.Status = domain.StatusSuccess
	outcome.Reason = ""
	outcome.After = domain.Preview(after)
	outcome.Diff = diffStats(element.Text, after)

	// Text was written; a lost style is reported but still counts.
	if err := doc.SetStyle(ctx, element.Locator, style); err != nil {
		outcome.Error = "style not restored: " + err.Error()
	}
	return outcome
}

func restyle(ctx context.Context, doc slides.Document, plan Plan, element domain.TextElement, style domain.StyleSnapshot, outcome domain.ElementOutcome) domain.ElementOutcome {
	next, ok := plan.Restyle(style)
	if !ok {
		outcome.Reason = "no match"
		return outcome
	}
	if next.Equal(style) {
		outcome.Reason = "unchanged"
		return outcome
	}
	if err := doc.SetStyle(ctx, element.Locator, next); err != nil {
		return failed(outcome, err)
	}

	outcome.Status = domain.StatusSuccess
	outcome.Reason = ""
	outcome.After = domain.Preview(element.Text)
	return outcome
}

func failed(outcome domain.ElementOutcome, err error) domain.ElementOutcome {
	outcome.Status = domain.StatusFailed
	outcome.Reason = ""
	outcome.Error = err.Error()
	return outcome
}
