package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alanmaizon/slidebuddy/internal/middleware"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	maxRetriesCap     = 5
	retryBaseDelay    = 200 * time.Millisecond
	retryMaxDelay     = 2 * time.Second
)

// retryPolicy bounds every attempt with its own timeout and retries
// transient failures with capped exponential backoff.
type retryPolicy struct {
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

func newRetryPolicy(timeout time.Duration, maxRetries int) retryPolicy {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > maxRetriesCap {
		maxRetries = maxRetriesCap
	}
	return retryPolicy{timeout: timeout, maxRetries: maxRetries, baseDelay: retryBaseDelay}
}

// policyFromEnv reads LLM_TIMEOUT (a duration such as "20s"), the older
// LLM_TIMEOUT_MS, and LLM_MAX_RETRIES.
func policyFromEnv() retryPolicy {
	timeout := defaultTimeout
	if raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	} else if raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_MS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			timeout = time.Duration(parsed) * time.Millisecond
		}
	}

	maxRetries := defaultMaxRetries
	if raw := strings.TrimSpace(os.Getenv("LLM_MAX_RETRIES")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			maxRetries = parsed
		}
	}
	return newRetryPolicy(timeout, maxRetries)
}

// run calls attempt until it succeeds, fails permanently or the retry
// budget is spent. An exhausted budget is reported as ErrTransient.
func (p retryPolicy) run(ctx context.Context, provider string, attempt func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	attempts := 0
	for attempts <= p.maxRetries {
		if attempts > 0 {
			if err := p.wait(ctx, attempts-1); err != nil {
				return "", err
			}
		}
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		text, err := attempt(attemptCtx)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", err
		}
		if attempts <= p.maxRetries {
			log.Printf(
				"request_id=%s component=provider provider=%s event=retry attempt=%d error=%q",
				middleware.RequestIDFromContext(ctx),
				provider,
				attempts,
				err.Error(),
			)
		}
	}

	if errors.Is(lastErr, ErrTransient) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %s gave up after %d attempts: %w", ErrTransient, provider, attempts, lastErr)
}

func (p retryPolicy) wait(ctx context.Context, attempt int) error {
	delay := p.baseDelay << attempt
	if delay <= 0 || delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// isRetryable reports whether another attempt could plausibly succeed.
func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfig), errors.Is(err, ErrMalformedResponse), errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTransient):
		return true
	}

	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.statusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// SDK clients surface transport failures as plain strings.
	message := strings.ToLower(err.Error())
	for _, token := range []string{
		"timeout",
		"temporarily unavailable",
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"resource_exhausted",
		"429",
		"503",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
