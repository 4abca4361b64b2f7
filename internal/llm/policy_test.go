package llm

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) retryPolicy {
	return retryPolicy{timeout: time.Second, maxRetries: maxRetries, baseDelay: time.Millisecond}
}

func TestPolicyFromEnvDefaults(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "")
	t.Setenv("LLM_TIMEOUT_MS", "")
	t.Setenv("LLM_MAX_RETRIES", "")

	policy := policyFromEnv()
	if policy.timeout != defaultTimeout {
		t.Fatalf("expected default timeout %s, got %s", defaultTimeout, policy.timeout)
	}
	if policy.maxRetries != defaultMaxRetries {
		t.Fatalf("expected default retries %d, got %d", defaultMaxRetries, policy.maxRetries)
	}
}

func TestPolicyFromEnvPrefersDurationAndCapsRetries(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "8s")
	t.Setenv("LLM_TIMEOUT_MS", "100")
	t.Setenv("LLM_MAX_RETRIES", "99")

	policy := policyFromEnv()
	if policy.timeout != 8*time.Second {
		t.Fatalf("expected timeout 8s, got %s", policy.timeout)
	}
	if policy.maxRetries != maxRetriesCap {
		t.Fatalf("expected retries capped at %d, got %d", maxRetriesCap, policy.maxRetries)
	}
}

func TestPolicyFromEnvMilliseconds(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "")
	t.Setenv("LLM_TIMEOUT_MS", "2500")
	t.Setenv("LLM_MAX_RETRIES", "-3")

	policy := policyFromEnv()
	if policy.timeout != 2500*time.Millisecond {
		t.Fatalf("expected timeout 2.5s, got %s", policy.timeout)
	}
	if policy.maxRetries != 0 {
		t.Fatalf("expected negative retries clamped to 0, got %d", policy.maxRetries)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"server error", &providerHTTPError{provider: "openai", statusCode: 500}, true},
		{"rate limited", &providerHTTPError{provider: "openai", statusCode: 429}, true},
		{"bad request", &providerHTTPError{provider: "openai", statusCode: 400}, false},
		{"network timeout", &net.DNSError{IsTimeout: true}, true},
		{"plain error", errors.New("invalid input"), false},
		{"config", ErrConfig, false},
		{"canceled", context.Canceled, false},
		{"malformed", ErrMalformedResponse, false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestRetryPolicyRetriesTransientFailures(t *testing.T) {
	calls := 0
	text, err := fastPolicy(2).run(context.Background(), "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &providerHTTPError{provider: "test", statusCode: 503}
		}
		return "ok", nil
	})
	if err != nil || text != "ok" {
		t.Fatalf("expected ok after retries, got %q %v", text, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryPolicyStopsOnPermanentFailure(t *testing.T) {
	calls := 0
	_, err := fastPolicy(3).run(context.Background(), "test", func(context.Context) (string, error) {
		calls++
		return "", &providerHTTPError{provider: "test", statusCode: 401}
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if Classify(err) != CategoryConfig {
		t.Fatalf("expected config category, got %s", Classify(err))
	}
}

func TestRetryPolicyExhaustedIsTransient(t *testing.T) {
	calls := 0
	_, err := fastPolicy(1).run(context.Background(), "test", func(context.Context) (string, error) {
		calls++
		return "", errors.New("connection reset by peer")
	})
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestRetryPolicyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := fastPolicy(5).run(ctx, "test", func(context.Context) (string, error) {
		calls++
		cancel()
		return "", context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", calls)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{nil, CategoryNone},
		{context.Canceled, CategoryCanceled},
		{context.DeadlineExceeded, CategoryTimeout},
		{&providerHTTPError{provider: "openai", statusCode: 403}, CategoryConfig},
		{&providerHTTPError{provider: "openai", statusCode: 429}, CategoryTransient},
		{errors.Join(ErrMalformedResponse, errors.New("no choices")), CategoryMalformed},
		{errors.New("connection reset by peer"), CategoryTransient},
		{errors.New("boom"), CategoryUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v): expected %s, got %s", tc.err, tc.want, got)
		}
	}
}
