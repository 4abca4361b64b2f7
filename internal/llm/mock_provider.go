package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	quoteOpen  = "<<<\n"
	quoteClose = "\n>>>"
)

// Quote wraps element text in the block delimiters every rewrite prompt uses.
func Quote(text string) string {
	return quoteOpen + text + quoteClose
}

// Unquote extracts the first quoted block of a prompt.
func Unquote(prompt string) (string, bool) {
	start := strings.Index(prompt, quoteOpen)
	if start < 0 {
		return "", false
	}
	rest := prompt[start+len(quoteOpen):]
	end := strings.Index(rest, quoteClose)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

type ResponderFunc func(prompt string, maxTokens int) (string, error)

// MockProvider answers from a responder function. The default responder
// echoes quoted text with a marker and has nothing to say to anything else.
type MockProvider struct {
	respond ResponderFunc
	calls   atomic.Int64
}

func NewMockProvider() *MockProvider {
	return &MockProvider{respond: defaultMockResponse}
}

func NewScriptedProvider(respond ResponderFunc) *MockProvider {
	if respond == nil {
		respond = defaultMockResponse
	}
	return &MockProvider{respond: respond}
}

func (m *MockProvider) Name() string {
	return "mock"
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

func (m *MockProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return observeProviderOperation(ctx, m.Name(), "complete", func(context.Context) (string, error) {
		m.calls.Add(1)
		return m.respond(prompt, maxTokens)
	})
}

func defaultMockResponse(prompt string, _ int) (string, error) {
	text, ok := Unquote(prompt)
	if !ok {
		return "", fmt.Errorf("%w: mock provider has no reply for this prompt", ErrMalformedResponse)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: nothing to rewrite", ErrMalformedResponse)
	}
	return "[mock] " + text, nil
}
