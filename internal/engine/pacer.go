package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out batches of external calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay sleeps for a constant duration between batches.
type FixedDelay time.Duration

func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucket admits batches at a steady rate with a burst allowance.
type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

const DefaultBatchDelay = 100 * time.Millisecond

type PacerConfig struct {
	Kind  string
	Delay time.Duration
	Rate  float64
	Burst int
}

// NewPacer builds a pacer from config. Kind is "fixed" (default),
// "token_bucket" or "none".
func NewPacer(cfg PacerConfig) (Pacer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "fixed":
		delay := cfg.Delay
		if delay < 0 {
			delay = 0
		}
		return FixedDelay(delay), nil
	case "token_bucket":
		if cfg.Rate <= 0 {
			return nil, fmt.Errorf("token_bucket pacer needs a positive rate, got %v", cfg.Rate)
		}
		return NewTokenBucket(cfg.Rate, cfg.Burst), nil
	case "none":
		return FixedDelay(0), nil
	default:
		return nil, fmt.Errorf("unknown pacer %q", cfg.Kind)
	}
}
