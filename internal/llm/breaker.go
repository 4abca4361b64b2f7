package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 3,
		OpenTimeout:         30 * time.Second,
	}
}

// BreakerProvider trips after repeated transient failures so callers fall
// back to heuristics without waiting on a dead endpoint every turn.
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerProvider(inner Provider, settings BreakerSettings) *BreakerProvider {
	if settings.ConsecutiveFailures == 0 {
		settings = DefaultBreakerSettings()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		// Only transient failures count against the endpoint.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("component=provider provider=%s event=breaker_state from=%s to=%s", name, from, to)
		},
	})

	return &BreakerProvider{inner: inner, cb: cb}
}

func (b *BreakerProvider) Name() string {
	return b.inner.Name()
}

func (b *BreakerProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, prompt, maxTokens)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %s circuit open", ErrTransient, b.inner.Name())
	}
	if err != nil {
		return "", err
	}
	text, _ := result.(string)
	return text, nil
}
