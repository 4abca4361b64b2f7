package llm

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alanmaizon/slidebuddy/internal/metrics"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
)

var tracer = otel.Tracer("github.com/alanmaizon/slidebuddy/internal/llm")

// observeProviderOperation wraps one provider call in a span, a log line and
// the provider metrics. The call receives the span's context.
func observeProviderOperation(ctx context.Context, provider string, operation string, call func(ctx context.Context) (string, error)) (string, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "llm."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("llm.provider", provider))

	result, err := call(ctx)

	status := "success"
	category := Classify(err)
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
	}
	span.SetAttributes(
		attribute.String("llm.error_category", string(category)),
		attribute.Int("llm.reply_chars", len(result)),
	)

	duration := time.Since(started)
	metrics.RecordProviderCall(provider, operation, status, string(category), duration)
	log.Printf(
		"request_id=%s component=provider provider=%s operation=%s status=%s error_category=%s duration_ms=%d",
		middleware.RequestIDFromContext(ctx),
		provider,
		operation,
		status,
		category,
		duration.Milliseconds(),
	)

	return result, err
}
